package version

// Current is the release version of the fsregister module, without a "v" prefix.
const Current = "0.3.0"
