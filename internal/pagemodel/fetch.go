package pagemodel

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

type fetchResult struct {
	body []byte
	err  error
}

// newCollector builds the base colly collector shared by the page model. Each
// fetch clones it, so per-request state never leaks between calls.
func newCollector(cfg Config) *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	c.AllowURLRevisit = true
	c.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	})
	c.SetRequestTimeout(cfg.RequestTimeout)
	return c
}

// fetch retrieves one page body, mapping transport failures to typed network
// errors.
func (m *Colly) fetch(rawURL string) ([]byte, error) {
	collector := m.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: scraper.NewFetchError(scraper.KindNetwork, rawURL, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, scraper.NewFetchError(scraper.KindNetwork, rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		return res.body, res.err
	default:
		return nil, scraper.NewFetchError(scraper.KindNetwork, rawURL, errors.New("fetch produced no result"))
	}
}
