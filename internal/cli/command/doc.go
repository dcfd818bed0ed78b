// Package command defines the geminid command line.
//
// It uses urfave/cli/v2. Running the binary without a subcommand is the
// same as "geminid serve":
//
//	geminid --config /etc/geminid/config.yaml
//	geminid serve --cert cert.pem --key key.pem --public ./capsule
//	geminid config check -c /etc/geminid/config.yaml -o yaml
package command
