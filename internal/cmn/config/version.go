package config

var (
	// Version is the application version, set at build time via ldflags
	Version = "dev"
	// AppName is the human-readable application name
	AppName = "Streamdesk"
	// AppSlug is the lowercase application identifier used in paths and commands
	AppSlug = "streamdesk"
)

// UserAgent is sent with outbound requests to the license authority.
func UserAgent() string {
	return AppSlug + "/" + Version
}
