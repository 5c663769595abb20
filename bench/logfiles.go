package bench

import "path/filepath"

// logFiles names the per-case log locations. Client logs may live on a
// remote load host; run logs are always local.
type logFiles struct {
	tempDir       string
	remoteTempDir string
	suffix        string
	remote        bool
	clientPrefix  string
	runPrefix     string
}

func throughputLogs(o Options) logFiles {
	return logFiles{
		tempDir:       o.TempDir,
		remoteTempDir: o.ClientTempDir,
		suffix:        o.suffix(),
		remote:        o.Remote(),
		clientPrefix:  "memcached-throughput-client",
		runPrefix:     "run-memcached-throughput",
	}
}

func memoryLogs(o Options) logFiles {
	return logFiles{
		tempDir:       o.TempDir,
		remoteTempDir: o.ClientTempDir,
		suffix:        o.suffix(),
		remote:        o.Remote(),
		clientPrefix:  "memcached-mem-client",
		runPrefix:     "run-memcached-mem",
	}
}

func (l logFiles) localClientLog(name string) string {
	return filepath.Join(l.tempDir, l.clientPrefix+"-"+name+l.suffix+".log")
}

// clientLogArg is the path handed to the client binary, which is the
// remote path when the client runs over SSH.
func (l logFiles) clientLogArg(name string) string {
	if !l.remote {
		return l.localClientLog(name)
	}
	return filepath.Join(l.remoteTempDir, l.clientPrefix+"-"+name+l.suffix+".log")
}

func (l logFiles) runLog(name string) string {
	return filepath.Join(l.tempDir, l.runPrefix+"-"+name+l.suffix+".log")
}
