package env

import "os"

var (
	ResultsDir    = GetEnv("ORTHRUS_RESULTS_DIR", "results")
	TempDir       = GetEnv("ORTHRUS_TEMP_DIR", "temp")
	BuildDir      = GetEnv("ORTHRUS_BUILD_DIR", "build")
	StorageBucket = GetEnv("ORTHRUS_BUCKET", "")
	Verbose       = GetEnv("ORTHRUS_VERBOSE", "")
)

func GetEnv(name, defval string) string {
	if r := os.Getenv(name); r != "" {
		return r
	}
	return defval
}
