package config

// Version of the application, used in the default User-Agent.
const Version = "1.1.0"
