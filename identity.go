package shelfauth

import "context"

// identityAvailable runs the two uniqueness checks every provisioning
// entry point shares: roll first, email second, each against finalized
// accounts only. Pending registrations are deliberately not consulted;
// duplicate applications are resolved when one is promoted.
func (e *Engine) identityAvailable(ctx context.Context, roll, email string) error {
	if roll != "" {
		acct, err := e.accounts.FindByRoll(ctx, roll)
		if err != nil {
			return err
		}
		if acct != nil {
			return ErrRollTaken
		}
	}

	acct, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct != nil {
		return ErrEmailTaken
	}

	return nil
}
