// Package shelfauth provides the account-provisioning and authentication
// engine of a library-management backend: student registration behind an
// email-verification gate, OTP issuance and rotation, login for student
// and management roles, password change, and access-token refresh.
//
// Engine methods are stateless between calls and safe for concurrent use
// after construction through [Builder.Build]. All durable state lives in
// the caller-supplied stores; operations touching more than one document
// run inside the caller-supplied [UnitOfWork].
//
// # Architecture boundaries
//
// shelfauth is the public surface. It exposes [Engine], [Builder],
// [Config], the store interfaces, and value types. Credential hashing and
// token signing live in the password and token subpackages; store
// implementations live under store/.
//
// # Error contract
//
// Every operation returns a sentinel [Error] carrying a stable [Kind]
// and human-readable message. Callers compare with [errors.Is] and map
// [KindOf] onto their transport's status codes. Unexpected internal
// causes are logged, never surfaced.
package shelfauth
