// Package config handles configuration loading for grimoire.
//
// Configuration is YAML, loaded from an explicit path or the XDG default
// (~/.config/grimoire/config.yaml). ${VAR_NAME} references expand from the
// environment before parsing; durations use time.ParseDuration syntax.
//
//	server:
//	  http_addr: "127.0.0.1:8787"
//	  transport: "http"        # or "stdio"
//
//	auth:
//	  require: true
//	  jwt_secret: "${GRIMOIRE_JWT_SECRET}"
//	  tokens_file: "~/.local/share/grimoire/tokens.yaml"
//
//	engine:
//	  osascript_path: "/usr/bin/osascript"
//	  timeout: "30s"
//	  queue_warn_threshold: 8
//
//	tailscale:
//	  enabled: false
//	  hostname: "grimoire"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	domains:
//	  messages:
//	    enabled: true
//	    db_path: ""            # default store location when empty
//	    backends:
//	      send: "automation"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
