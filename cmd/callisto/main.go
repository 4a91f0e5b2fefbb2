// Callisto records how students use AI tools, scores that usage against the
// institution's policies and turns the history into insights.
//
// Usage:
//
//	# Start the API server with default configuration
//	callisto run
//
//	# Start with a custom configuration file
//	callisto run --config /etc/callisto/config.yaml
//
//	# Validate and load the policies file
//	callisto policy lint --file policies.yaml
//	callisto policy sync
//
//	# Evaluate one user, or sweep every active user
//	callisto evaluate s1234567 --window week
//	callisto evaluate --all --store
//
//	# Regenerate insights and export a user's data
//	callisto insights generate s1234567
//	callisto export s1234567 --format csv --output usage.csv
package main

import "os"

func main() {
	os.Exit(Execute())
}
