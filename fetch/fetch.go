// Package fetch is the thin HTTP client the engine sits behind. It returns
// decoded page text and keeps transport concerns (politeness, anti-bot
// roundtripper, cookies) away from the parsing code.
package fetch

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/caffix/cloudflare-roundtripper/cfrt"
	"github.com/gocolly/colly"
)

// TransportError marks a network-level failure, distinct from the parse
// anomalies the engine raises.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	base *colly.Collector
}

func NewClient() *Client {
	collector := colly.NewCollector(
		colly.IgnoreRobotsTxt(),
		colly.UserAgent("ljcorpus archiver"),
		colly.AllowURLRevisit(),
	)
	transport, err :=
		cfrt.New(&http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 15 * time.Second,
				DualStack: true,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		})
	if err != nil {
		log.Fatal(err)
	}
	collector.WithTransport(transport)
	collector.Limit(&colly.LimitRule{
		Parallelism: 1,
		RandomDelay: 10 * time.Second,
	})
	return &Client{base: collector}
}

// FetchText retrieves one page and returns its decoded text.
func (c *Client) FetchText(rawURL string) (body string, err error) {
	collector := c.base.Clone()
	// Age-gated communities serve an interstitial without this cookie.
	collector.SetCookies(rawURL, []*http.Cookie{{Name: "adult_explicit", Value: "1"}})

	collector.OnRequest(func(r *colly.Request) {
		fmt.Printf("Fetching %s\n", r.URL.String())
	})
	collector.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	collector.OnError(func(r *colly.Response, e error) {
		err = e
	})

	if visitErr := collector.Visit(rawURL); visitErr != nil && err == nil {
		err = visitErr
	}
	if err != nil {
		return "", &TransportError{URL: rawURL, Err: err}
	}
	return body, nil
}
