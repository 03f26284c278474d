package urlkey

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// Normalizer turns article URLs into canonical article keys of the form
// https://<host><path>.
type Normalizer struct {
	profile *idna.Profile
}

func NewNormalizer() *Normalizer {
	return &Normalizer{profile: idna.New(idna.MapForLookup(), idna.Transitional(false))}
}

// Normalize returns the key for rawURL. It reports false when the URL has
// no host or no article path.
func (n *Normalizer) Normalize(rawURL string) (string, bool) {
	key, err := n.normalize(rawURL)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (n *Normalizer) normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", nil
	}
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	} else if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", nil
	}

	host, err := n.host(u.Hostname())
	if err != nil || host == "" {
		return "", err
	}

	p := strings.ReplaceAll(u.Path, " ", "_")
	p = norm.NFC.String(p)
	if p == "" || p == "/" {
		return "", nil
	}

	key := url.URL{Scheme: "https", Host: host, Path: p}
	return key.String(), nil
}

func (n *Normalizer) host(hostname string) (string, error) {
	host := strings.TrimSuffix(strings.ToLower(hostname), ".")
	if host == "" {
		return "", nil
	}
	ascii, err := n.profile.ToASCII(host)
	if err != nil {
		return "", err
	}
	// Mobile hosts share keys with their desktop counterpart.
	labels := strings.Split(ascii, ".")
	if len(labels) > 2 && labels[1] == "m" {
		labels = append(labels[:1], labels[2:]...)
	} else if len(labels) > 2 && labels[0] == "m" {
		labels = labels[1:]
	}
	return strings.Join(labels, "."), nil
}
