package app

const ServiceName = "registration-service"

// Version is overridden at build time with -ldflags "-X registration-service/internal/app.Version=...".
var Version = "dev"
