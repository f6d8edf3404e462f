// Package password implements peppered password hashing and the composition
// policy for new passwords.
//
// Two [Hasher] implementations are provided. [Bcrypt] is the default. [Argon2]
// encodes digests in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both append a server-wide pepper to the password before hashing and implement
// [Upgrader], so the engine can re-hash on the next successful login after a cost
// increase.
//
// [Policy] is evaluated with ozzo-validation rules at registration and at
// password reset.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or pepper material.
package password
