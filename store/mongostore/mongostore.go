// Package mongostore implements the shelfauth store interfaces on
// MongoDB. Registration submission and OTP verification rely on the
// session-based unit of work, so the deployment must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shahriar-hub/shelfauth"
)

const (
	usersCollection         = "users"
	registrationsCollection = "student_registration_requests"
	verificationsCollection = "email_verifications"
)

// Store wraps one database handle. The per-collection interfaces are
// exposed through Accounts, Registrations, and Verifications; Store
// itself is the unit of work.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New returns a Store bound to the named database on client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// EnsureIndexes creates the uniqueness and expiry indexes the engine's
// contracts assume: unique email and sparse unique roll on users, and
// TTL reaping on both time-limited collections.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "roll", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return err
	}

	expireAfter := options.Index().SetExpireAfterSeconds(0)
	_, err = s.db.Collection(registrationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: expireAfter,
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(verificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: expireAfter,
	})
	return err
}

// Accounts returns the finalized-account view of the store.
func (s *Store) Accounts() shelfauth.AccountStore { return accountView{s.db.Collection(usersCollection)} }

// Registrations returns the pending-registration view of the store.
func (s *Store) Registrations() shelfauth.RegistrationStore {
	return registrationView{s.db.Collection(registrationsCollection)}
}

// Verifications returns the OTP-challenge view of the store.
func (s *Store) Verifications() shelfauth.VerificationStore {
	return verificationView{s.db.Collection(verificationsCollection)}
}

// Run executes fn inside one MongoDB transaction. The ctx handed to fn
// is the session context; every store call inside fn must use it.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

/*
====================================
DOCUMENTS
====================================
*/

type accountDoc struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	Role                  string             `bson:"role"`
	Roll                  string             `bson:"roll,omitempty"`
	Email                 string             `bson:"email"`
	PasswordHash          string             `bson:"password"`
	Status                string             `bson:"status"`
	StudentID             string             `bson:"student,omitempty"`
	LibrarianID           string             `bson:"librarian,omitempty"`
	AdministratorID       string             `bson:"administrator,omitempty"`
	LastLoginAt           time.Time          `bson:"lastLoginAt,omitempty"`
	LastPasswordChangedAt time.Time          `bson:"lastPasswordChangedAt,omitempty"`
}

func (d *accountDoc) toDomain() *shelfauth.Account {
	return &shelfauth.Account{
		ID:                    d.ID.Hex(),
		Role:                  shelfauth.Role(d.Role),
		Roll:                  d.Roll,
		Email:                 d.Email,
		PasswordHash:          d.PasswordHash,
		Status:                shelfauth.AccountStatus(d.Status),
		StudentID:             d.StudentID,
		LibrarianID:           d.LibrarianID,
		AdministratorID:       d.AdministratorID,
		LastLoginAt:           d.LastLoginAt,
		LastPasswordChangedAt: d.LastPasswordChangedAt,
	}
}

type registrationDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	FullName        string             `bson:"fullName"`
	Gender          string             `bson:"gender"`
	Roll            string             `bson:"roll"`
	Email           string             `bson:"email"`
	DepartmentID    string             `bson:"department"`
	Semester        int                `bson:"semester"`
	Shift           string             `bson:"shift"`
	Session         string             `bson:"session"`
	PasswordHash    string             `bson:"password"`
	IsVerifiedEmail bool               `bson:"isVerifiedEmail"`
	Status          string             `bson:"status"`
	RejectReason    string             `bson:"rejectReason,omitempty"`
	ExpireAt        time.Time          `bson:"expireAt"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d *registrationDoc) toDomain() *shelfauth.PendingRegistration {
	return &shelfauth.PendingRegistration{
		ID:              d.ID.Hex(),
		FullName:        d.FullName,
		Gender:          shelfauth.Gender(d.Gender),
		Roll:            d.Roll,
		Email:           d.Email,
		DepartmentID:    d.DepartmentID,
		Semester:        d.Semester,
		Shift:           shelfauth.Shift(d.Shift),
		Session:         d.Session,
		PasswordHash:    d.PasswordHash,
		IsVerifiedEmail: d.IsVerifiedEmail,
		Status:          shelfauth.RegistrationStatus(d.Status),
		RejectReason:    d.RejectReason,
		ExpireAt:        d.ExpireAt,
		CreatedAt:       d.CreatedAt,
	}
}

type verificationDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	OTPHash        string             `bson:"otp"`
	ResendCount    int                `bson:"resendCount"`
	RegistrationID primitive.ObjectID `bson:"registrationRequest"`
	Status         string             `bson:"status"`
	ExpireAt       time.Time          `bson:"expireAt"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d *verificationDoc) toDomain() *shelfauth.OtpChallenge {
	return &shelfauth.OtpChallenge{
		ID:             d.ID.Hex(),
		Email:          d.Email,
		OTPHash:        d.OTPHash,
		ResendCount:    d.ResendCount,
		RegistrationID: d.RegistrationID.Hex(),
		Status:         shelfauth.ChallengeStatus(d.Status),
		ExpireAt:       d.ExpireAt,
		CreatedAt:      d.CreatedAt,
	}
}

/*
====================================
ACCOUNT VIEW
====================================
*/

type accountView struct{ col *mongo.Collection }

func (v accountView) findOne(ctx context.Context, filter bson.M) (*shelfauth.Account, error) {
	var doc accountDoc
	err := v.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (v accountView) FindByID(ctx context.Context, id string) (*shelfauth.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return v.findOne(ctx, bson.M{"_id": oid})
}

func (v accountView) FindByRoll(ctx context.Context, roll string) (*shelfauth.Account, error) {
	if roll == "" {
		return nil, nil
	}
	return v.findOne(ctx, bson.M{"roll": roll})
}

func (v accountView) FindByEmail(ctx context.Context, email string) (*shelfauth.Account, error) {
	return v.findOne(ctx, bson.M{"email": email})
}

func (v accountView) FindStudent(ctx context.Context, roll string) (*shelfauth.Account, error) {
	if roll == "" {
		return nil, nil
	}
	return v.findOne(ctx, bson.M{"roll": roll, "role": string(shelfauth.RoleStudent)})
}

func (v accountView) FindManagement(ctx context.Context, email string) (*shelfauth.Account, error) {
	return v.findOne(ctx, bson.M{"email": email, "role": bson.M{"$ne": string(shelfauth.RoleStudent)}})
}

func (v accountView) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = v.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}

func (v accountView) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, err
	}
	res, err := v.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password":              hash,
		"lastPasswordChangedAt": at,
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

/*
====================================
REGISTRATION VIEW
====================================
*/

type registrationView struct{ col *mongo.Collection }

func (v registrationView) Create(ctx context.Context, reg *shelfauth.PendingRegistration) (string, error) {
	doc := registrationDoc{
		FullName:        reg.FullName,
		Gender:          string(reg.Gender),
		Roll:            reg.Roll,
		Email:           reg.Email,
		DepartmentID:    reg.DepartmentID,
		Semester:        reg.Semester,
		Shift:           string(reg.Shift),
		Session:         reg.Session,
		PasswordHash:    reg.PasswordHash,
		IsVerifiedEmail: reg.IsVerifiedEmail,
		Status:          string(reg.Status),
		RejectReason:    reg.RejectReason,
		ExpireAt:        reg.ExpireAt,
		CreatedAt:       reg.CreatedAt,
	}
	res, err := v.col.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (v registrationView) FindByID(ctx context.Context, id string) (*shelfauth.PendingRegistration, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc registrationDoc
	findErr := v.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if findErr != nil {
		return nil, findErr
	}
	return doc.toDomain(), nil
}

func (v registrationView) MarkEmailVerified(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, err
	}
	res, err := v.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"isVerifiedEmail": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

/*
====================================
VERIFICATION VIEW
====================================
*/

type verificationView struct{ col *mongo.Collection }

func (v verificationView) Create(ctx context.Context, ch *shelfauth.OtpChallenge) (string, error) {
	regID, err := primitive.ObjectIDFromHex(ch.RegistrationID)
	if err != nil {
		return "", err
	}
	doc := verificationDoc{
		Email:          ch.Email,
		OTPHash:        ch.OTPHash,
		ResendCount:    ch.ResendCount,
		RegistrationID: regID,
		Status:         string(ch.Status),
		ExpireAt:       ch.ExpireAt,
		CreatedAt:      ch.CreatedAt,
	}
	res, err := v.col.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (v verificationView) FindByID(ctx context.Context, id string) (*shelfauth.OtpChallenge, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc verificationDoc
	findErr := v.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(findErr, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if findErr != nil {
		return nil, findErr
	}
	return doc.toDomain(), nil
}

func (v verificationView) ReplaceOTP(ctx context.Context, id, otpHash string, expireAt time.Time) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, err
	}
	res, err := v.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"otp": otpHash, "expireAt": expireAt},
		"$inc": bson.M{"resendCount": 1},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (v verificationView) MarkVerified(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, err
	}
	res, err := v.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": string(shelfauth.ChallengeVerified)}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
