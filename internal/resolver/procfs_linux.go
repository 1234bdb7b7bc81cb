package resolver

const procfsSupported = true
