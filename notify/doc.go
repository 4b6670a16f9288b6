// Package notify reports an address change to the operator.
//
// The report is a short CRLF-joined text naming the machine and the old and
// new records. It is printed by Console and mailed by Mailer; Fanout sends it
// through several notifiers and combines their errors.
package notify
