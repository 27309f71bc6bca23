package instance

import "github.com/angelmondragon/packfinderz-identity/pkg/env"

// ID names this process in logs: the Heroku dyno, else the container hostname, else "local".
func ID() string {
	return env.FirstOf("local", "DYNO", "HOSTNAME")
}
