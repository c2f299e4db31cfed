package ir

// Version is the hrsync release.
const Version = "0.1.0"
