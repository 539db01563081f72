// Package cli is the interactive printkeeper console: first-run setup,
// master password entry, login and user administration through a small
// read-eval-print loop.
//
// Commands (after login):
//
//	help                 show available commands
//	whoami               show the session user
//	users                list users (admin and above)
//	adduser              create a user (super_admin)
//	passwd               change your password
//	deactivate <user>    deactivate an account (super_admin)
//	unlock <user>        clear a lockout (super_admin)
//	logs [n]             show the newest access log entries (super_admin)
//	check                score a password against the policy
//	masterpw             change the master password (super_admin)
//	logout               end the session
//	exit | quit          leave the program
package cli
