// Package notify delivers password-reset secrets to account holders.
//
// [Notifier] is the only contract the engine uses. [SMTP] sends plain-text
// mail, [NATS] hands the message to an external mailer over a subject, and
// [Log] writes the message to a zap logger for development setups.
// [WithTimeout] bounds any notifier.
package notify
