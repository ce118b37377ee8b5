package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		secureSourcePolicy(),
		deniedPackagesPolicy(),
		runtimePinningPolicy(),
	}
}

// secureSourcePolicy rejects package sources fetched over plain HTTP.
func secureSourcePolicy() Policy {
	return Policy{
		Name:        "secure-sources",
		Description: "Package sources and dotfile repositories must use an encrypted transport",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package bootkit.policies.sources

import rego.v1

deny contains violation if {
	input.action.kind == "install"
	url := input.action.source.url
	startswith(lower(url), "http://")
	not input.config.allow_http
	violation := {
		"message": sprintf("source %s uses an unencrypted URL %s", [input.action.source.name, url]),
		"severity": "error",
	}
}

deny contains violation if {
	input.action.kind == "install"
	repo := input.action.dotfiles.repo
	startswith(lower(repo), "http://")
	not input.config.allow_http
	violation := {
		"message": sprintf("dotfile repository %s uses an unencrypted URL", [repo]),
		"severity": "error",
	}
}
`,
	}
}

// deniedPackagesPolicy blocks packages listed in the user's settings.
func deniedPackagesPolicy() Policy {
	return Policy{
		Name:        "denied-packages",
		Description: "Packages on the settings deny list are never installed",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package bootkit.policies.packages

import rego.v1

deny contains violation if {
	input.action.kind == "install"
	name := input.action.package.name
	some denied in input.config.denied_packages
	lower(denied) == lower(name)
	violation := {
		"message": sprintf("package %s is on the deny list", [name]),
		"severity": "error",
	}
}
`,
	}
}

// runtimePinningPolicy warns about runtimes tracking "latest".
func runtimePinningPolicy() Policy {
	return Policy{
		Name:        "runtime-pinning",
		Description: "Runtimes should pin a version instead of tracking latest",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package bootkit.policies.runtimes

import rego.v1

deny contains violation if {
	input.action.kind == "install"
	input.action.runtime.version == "latest"
	violation := {
		"message": sprintf("runtime %s is not pinned to a version", [input.action.runtime.name]),
		"severity": "warning",
	}
}
`,
	}
}
