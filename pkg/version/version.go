package version

// Version is the current application version.
const Version = "0.4.1"
