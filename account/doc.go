// Package account defines the credential record authcore reads and mutates, and
// the [Store] contract the host application implements (or takes from
// store/sqlstore).
//
// Only the fields on [Account] are owned by authcore. Profile data lives
// elsewhere and is never touched.
//
// # What this package must NOT do
//
//   - Import authcore or any internal package.
//   - Perform I/O; it holds types and sentinels only.
package account
