package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sirosfoundation/go-soapmep/pkg/transport"
)

// Common errors
var (
	// ErrNoRecordsFound is returned when no U-NAPTR records exist for an address
	ErrNoRecordsFound = errors.New("no NAPTR records found for address")
	// ErrInvalidAddress is returned for an empty address
	ErrInvalidAddress = errors.New("invalid address")
	// ErrServiceNotFound is returned when no record carries a matching service
	ErrServiceNotFound = errors.New("no matching service found in NAPTR records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR regexp cannot be used
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
)

// DefaultService is the NAPTR service tag of SOAP endpoints
const DefaultService = "SOAP:http"

// Config configures DNS discovery
type Config struct {
	// Domain is the base domain under which address hashes are published
	Domain string

	// Environment is inserted as a label before Domain when set, e.g. "test"
	Environment string

	// Services are the accepted NAPTR service tags, most preferred first.
	// Defaults to DefaultService.
	Services []string

	// DNSServer is the server to query as "ip:port". Empty reads
	// /etc/resolv.conf.
	DNSServer string

	// Timeout bounds a single DNS exchange
	Timeout time.Duration
}

// Resolver discovers endpoints over DNS
type Resolver struct {
	config Config
	client *dns.Client
}

// New creates a Resolver
func New(config Config) (*Resolver, error) {
	if config.Domain == "" {
		return nil, errors.New("discovery domain is required")
	}
	if len(config.Services) == 0 {
		config.Services = []string{DefaultService}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Resolver{
		config: config,
		client: &dns.Client{Timeout: config.Timeout},
	}, nil
}

// QueryDomain returns the DNS name queried for address
func (r *Resolver) QueryDomain(address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", ErrInvalidAddress
	}

	hash := sha256.Sum256([]byte(strings.ToLower(address)))
	label := strings.TrimRight(base32.StdEncoding.EncodeToString(hash[:]), "=")

	if r.config.Environment == "" {
		return dns.Fqdn(label + "." + r.config.Domain), nil
	}
	return dns.Fqdn(label + "." + r.config.Environment + "." + r.config.Domain), nil
}

// Lookup resolves address to an endpoint. It implements
// transport.EndpointLookupFunc; action is carried through unchanged.
func (r *Resolver) Lookup(ctx context.Context, address, action string) (*transport.EndpointInfo, error) {
	name, err := r.QueryDomain(address)
	if err != nil {
		return nil, err
	}

	records, err := r.lookupNAPTR(ctx, name)
	if err != nil {
		return nil, err
	}

	endpoint, err := r.selectRecord(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}

	return &transport.EndpointInfo{
		URL:     endpoint,
		Address: address,
		Action:  action,
	}, nil
}

func (r *Resolver) server() (string, error) {
	if r.config.DNSServer != "" {
		return r.config.DNSServer, nil
	}
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("failed to read DNS config: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", errors.New("no DNS servers configured")
	}
	return conf.Servers[0] + ":" + conf.Port, nil
}

func (r *Resolver) lookupNAPTR(ctx context.Context, name string) ([]*dns.NAPTR, error) {
	server, err := r.server()
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", name, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNoRecordsFound, name)
	default:
		return nil, fmt.Errorf("DNS lookup failed for %s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecordsFound, name)
	}
	return records, nil
}

// rank returns the position of service in the configured list, or -1
func (r *Resolver) rank(service string) int {
	for i, s := range r.config.Services {
		if strings.EqualFold(s, service) {
			return i
		}
	}
	return -1
}

// selectRecord picks the U-NAPTR record with the best service rank,
// then the lowest order and preference.
func (r *Resolver) selectRecord(records []*dns.NAPTR) (string, error) {
	var candidates []*dns.NAPTR
	for _, rec := range records {
		if strings.EqualFold(rec.Flags, "U") && r.rank(rec.Service) >= 0 {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return "", ErrServiceNotFound
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := r.rank(a.Service), r.rank(b.Service); ra != rb {
			return ra < rb
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Preference < b.Preference
	})

	return extractURL(candidates[0].Regexp)
}

// extractURL returns the replacement of a "!<pattern>!<replacement>!" regexp
func extractURL(regexp string) (string, error) {
	if len(regexp) < 2 {
		return "", ErrInvalidNAPTRRecord
	}
	delim := regexp[:1]
	parts := strings.Split(regexp, delim)
	if len(parts) < 4 || parts[2] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidNAPTRRecord, regexp)
	}

	u, err := url.Parse(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNAPTRRecord, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidNAPTRRecord, u.Scheme)
	}
	return parts[2], nil
}
