// Package config loads bootkit's tool settings.
//
// Settings are read from a YAML file, $XDG_CONFIG_HOME/bootkit/config.yaml by
// default, layered over built-in defaults and then overridden by BOOTKIT_*
// environment variables:
//
//	package_manager: pacman
//	sudo: true
//	journal:
//	  enabled: true
//	  keep: 50
//	policy:
//	  paths: [/etc/bootkit/policies]
//	  denied_packages: [telnet]
//	logging:
//	  level: debug
//	metrics:
//	  enabled: true
//	  textfile: /var/lib/node_exporter/textfile/bootkit.prom
//
// Settings never describe desired state. Packages, runtimes, environment
// variables and dotfiles are declared in the manifest only.
package config
