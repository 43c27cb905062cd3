// Package credentials loads MQTT broker credentials from a secrets file.
//
// The file holds the username on the first line and the password on the
// second. Anything after the second line is ignored. Keep the file out of
// version control and readable only by the service user (0600).
package credentials
