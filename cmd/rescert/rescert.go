package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rpki-tools/rescert/validator/lib"
	"github.com/rpki-tools/rescert/validator/pki"
	log "github.com/sirupsen/logrus"
)

var (
	RootTAL   = flag.String("tal.root", "tals/example.tal", "List of TAL files separated by comma")
	CertsDir  = flag.String("certs.dir", ".", "Directory scanned for certificates (.cer)")
	ValidTime = flag.String("valid.time", "now", "Validation time (now/timestamp/RFC3339)")
	LogLevel  = flag.String("loglevel", "info", "Log level")
	Output    = flag.String("output", "output.json", "Output file")
	SentryDSN = flag.String("sentry.dsn", "", "Send errors to Sentry with this DSN")
)

type OutputCert struct {
	SKI        string `json:"ski"`
	AKI        string `json:"aki,omitempty"`
	Manifest   string `json:"manifest,omitempty"`
	Repository string `json:"repository,omitempty"`
	Notify     string `json:"notify,omitempty"`
	Expires    int64  `json:"expires"`
	TALID      uint32 `json:"talid"`
}

type OutputSummary struct {
	Certificates []OutputCert `json:"certificates"`
	RouterKeys   []*pki.BRK   `json:"routerKeys"`
}

func reportError(err error) {
	log.Errorf("%v", err)
	if *SentryDSN == "" {
		return
	}
	if ce, ok := err.(*pki.CertificateError); ok {
		sentry.WithScope(func(scope *sentry.Scope) {
			ce.SetSentryScope(scope)
			sentry.CaptureException(ce)
		})
	} else {
		sentry.CaptureException(err)
	}
}

func main() {
	flag.Parse()
	lvl, _ := log.ParseLevel(*LogLevel)
	log.SetLevel(lvl)
	log.Infof("Validator started")

	if *SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn: *SentryDSN,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	var vt time.Time
	if *ValidTime == "now" {
		vt = time.Now().UTC()
	} else if ts, err := strconv.ParseInt(*ValidTime, 10, 64); err == nil {
		vt = time.Unix(ts, 0).UTC()
		log.Infof("Setting time to %v (timestamp)", vt)
	} else if vttmp, err := time.Parse(time.RFC3339, *ValidTime); err == nil {
		vt = vttmp
		log.Infof("Setting time to %v (RFC3339)", vt)
	}

	validator := pki.NewValidator()
	validator.Time = vt
	validator.Log = log.StandardLogger()

	// Anchor every TAL. The anchor certificate is expected in the
	// certificate directory under the basename of the TAL URI.
	taFiles := make(map[string]bool)
	for _, talPath := range strings.Split(*RootTAL, ",") {
		data, err := os.ReadFile(talPath)
		if err != nil {
			log.Fatal(err)
		}
		tal, err := librpki.DecodeTAL(data)
		if err != nil {
			log.Fatalf("%v: %v", talPath, err)
		}
		talid := validator.AddTAL(tal)

		taPath := filepath.Join(*CertsDir, filepath.Base(tal.URI()))
		der, err := os.ReadFile(taPath)
		if err != nil {
			log.Errorf("could not read trust anchor for %v: %v", talPath, err)
			continue
		}
		taFiles[taPath] = true
		if _, err := validator.AddTA(taPath, der, talid); err != nil {
			reportError(err)
		}
	}

	var pending []string
	err := filepath.Walk(*CertsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".cer") && !taFiles[path] {
			pending = append(pending, path)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Files come in no particular order; retry certificates whose
	// issuer has not been indexed yet until a pass makes no progress.
	for len(pending) > 0 {
		var retry []string
		for _, path := range pending {
			der, err := os.ReadFile(path)
			if err != nil {
				log.Errorf("%v: %v", path, err)
				continue
			}
			if _, err := validator.AddCert(path, der); err != nil {
				if pki.IsParentUnknown(err) {
					retry = append(retry, path)
					continue
				}
				reportError(err)
			}
		}
		if len(retry) == len(pending) {
			for _, path := range retry {
				log.Warnf("%v: no valid issuer found", path)
			}
			break
		}
		pending = retry
	}

	summary := OutputSummary{
		Certificates: make([]OutputCert, 0),
		RouterKeys:   make([]*pki.BRK, 0),
	}
	validator.Auths.Ascend(func(node *pki.AuthNode) bool {
		summary.Certificates = append(summary.Certificates, OutputCert{
			SKI:        node.Cert.SKI,
			AKI:        node.Cert.AKI,
			Manifest:   node.Cert.Manifest,
			Repository: node.Cert.Repository,
			Notify:     node.Cert.Notify,
			Expires:    node.Cert.Expires,
			TALID:      node.Cert.TALID,
		})
		return true
	})
	validator.BRKs.Ascend(func(brk *pki.BRK) bool {
		summary.RouterKeys = append(summary.RouterKeys, brk)
		return true
	})
	log.Infof("%d certificates, %d router keys", len(summary.Certificates), len(summary.RouterKeys))

	var buf io.Writer
	if *Output != "" {
		f, err := os.Create(*Output)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		buf = f
	} else {
		buf = os.Stdout
	}
	enc := json.NewEncoder(buf)
	enc.Encode(summary)
}
