// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Setupenv prepares the Python environment for the PT NAD alert bot.

It finds a Python interpreter (3.9 or newer, with pip), creates a virtual
environment in the current directory, installs the packages listed in
requirements.txt and, on request, installs a systemd service and generates
a self-signed TLS certificate for the bot's webhook.

# Usage

	$ setupenv [flags...]

Run without flags, it prints the defaults it is going to use and proceeds.

# Interpreter

The -python flag selects where the interpreter comes from:

	system  the first python3 in PATH (default)
	custom  the interpreter given with -custom-path
	nad     the interpreter bundled with PT NAD

# Service

With -create-service, main.py must exist in the current directory. The unit
is written to /etc/systemd/system/nad-alert-bot.service, so setupenv has to
run as root (use sudo). It runs as the user who invoked sudo. systemctl is
not called; setupenv prints the commands to enable and start the service.

# TLS

With -tls, openssl must be in PATH. A 4096-bit RSA key and a certificate
valid for 365 days are written to key.pem and cert.pem, replacing existing
files. The subject common name is set with -cn.

# Provisioning file

Instead of flags, settings can be kept in a Starlark file passed with
-config:

	provision(
	    python = "custom",
	    custom_path = "/opt/python3.12/bin/python3",
	    service = True,
	)

Flags and environment variables take precedence over the file.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/botenv/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
