package identityregistry

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

type fpInput struct {
	SN   string   `json:"sn,omitempty"`
	MACs []string `json:"macs,omitempty"`
	OS   string   `json:"os"`
	Host string   `json:"host"`
}

func trySerial() string {
	if s := os.Getenv("MIXSHUFFLE_DEVICE_SN"); s != "" {
		return s
	}
	if runtime.GOOS == "linux" {
		paths := []string{
			"/sys/class/dmi/id/product_uuid",
			"/sys/class/dmi/id/board_serial",
			"/sys/devices/virtual/dmi/id/product_uuid",
		}
		for _, p := range paths {
			if b, err := os.ReadFile(p); err == nil {
				s := strings.TrimSpace(string(b))
				if s != "" && s != "None" {
					return s
				}
			}
		}
	}
	return ""
}

func allMACs() []string {
	ifs, _ := net.Interfaces()
	var macs []string
	for _, i := range ifs {
		if i.Flags&net.FlagLoopback != 0 {
			continue
		}
		m := i.HardwareAddr.String()
		if m == "" {
			continue
		}
		macs = append(macs, strings.ToLower(m))
	}
	sort.Strings(macs)
	return macs
}

// DeviceFingerprint derives a stable, host-bound string from local
// hardware and OS signals. Registration uses it as a cheap replay
// check (re-registering node_id from a different machine is flagged)
// rather than as a trust boundary; the registry's actual security
// rests on whatever out-of-band channel hands operators their bearer
// tokens.
func DeviceFingerprint() string {
	host, _ := os.Hostname()
	fp := fpInput{
		SN:   trySerial(),
		MACs: allMACs(),
		OS:   runtime.GOOS,
		Host: host,
	}
	j, _ := json.Marshal(fp)
	h := sha256.Sum256(j)
	id := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(h[:]))
	if len(id) > 52 {
		id = id[:52]
	}
	return id
}
