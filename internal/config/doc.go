// Package config loads the shiftrule configuration file.
//
// The file is YAML and lives at $XDG_CONFIG_HOME/shiftrule/config.yaml
// (falling back to ~/.config/shiftrule/config.yaml). Every field is
// optional; missing fields take the defaults from New. Unknown fields are
// rejected so typos surface instead of being ignored.
//
//	database: ~/.local/share/shiftrule/rules.db
//	log:
//	  level: info
//	  format: text
//	browsers:
//	  - com.apple.Safari
//	  - org.mozilla.firefox
package config
