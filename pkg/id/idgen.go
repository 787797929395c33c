package id

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-courier/snowflakeid"
	"github.com/go-courier/snowflakeid/workeridutil"
)

var startTime, _ = time.Parse(time.RFC3339, "2020-01-01T00:00:00Z")
var sff = snowflakeid.NewSnowflakeFactory(16, 8, 5, startTime)

func New() (Gen, error) {
	return sff.NewSnowflake(workeridutil.WorkerIDFromIP(ResolveExposedIP()))
}

type Gen interface {
	ID() (uint64, error)
}

var defaultGen = sync.OnceValues(New)

// Default is the generator shared by the process.
func Default() Gen {
	gen, err := defaultGen()
	if err != nil {
		panic(err)
	}
	return gen
}

// SessionID returns a new id formatted for logs and error messages.
func SessionID(gen Gen) (string, error) {
	v, err := gen.ID()
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(v, 10), nil
}

// ResolveExposedIP returns the first non loopback IPv4 of the host, or loopback.
func ResolveExposedIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
				if ip := ipNet.IP.To4(); ip != nil {
					return ip
				}
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
