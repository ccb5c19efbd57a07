// Package export renders schedules in formats other tools consume.
package export

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/schedule"
	"github.com/xraph/burst/token"
)

// PostmanSchema is the collection format written by Postman.
const PostmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// RoutingKeyVariable is the Postman variable every request body uses for
// the routing key.
const RoutingKeyVariable = "{{routing_key}}"

// Collection is a Postman v2.1 collection.
type Collection struct {
	Info     Info       `json:"info"`
	Item     []Item     `json:"item"`
	Variable []Variable `json:"variable,omitempty"`
}

// Info describes a collection.
type Info struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

// Variable is a collection variable.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Item is one saved request.
type Item struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Request     Request `json:"request"`
}

// Request is an HTTP request.
type Request struct {
	Method string   `json:"method"`
	Header []Header `json:"header"`
	Body   Body     `json:"body"`
	URL    URL      `json:"url"`
}

// Header is one request header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Body is a raw request body.
type Body struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

// URL is a parsed request URL.
type URL struct {
	Raw      string   `json:"raw"`
	Protocol string   `json:"protocol"`
	Host     []string `json:"host"`
	Path     []string `json:"path"`
}

// Endpoints are the request targets. Empty fields use the delivery
// package defaults.
type Endpoints struct {
	Events string
	Change string
}

// Postman builds a collection with one request per template. When res is
// non-nil every placeholder is resolved once, as for the template's
// initial send; otherwise placeholders are kept verbatim.
func Postman(name string, templates []*schedule.Template, res *token.Resolver, endpoints Endpoints) (*Collection, error) {
	eventsURL, err := parseURL(endpoints.Events, delivery.DefaultEventsURL)
	if err != nil {
		return nil, err
	}
	changeURL, err := parseURL(endpoints.Change, delivery.DefaultChangeURL)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		Info:     Info{Name: name, Schema: PostmanSchema},
		Item:     make([]Item, 0, len(templates)),
		Variable: []Variable{{Key: "routing_key", Value: ""}},
	}
	summaries := plan.Summarize(templates, 0)
	for i, t := range templates {
		m, err := message(t, res)
		if err != nil {
			return nil, fmt.Errorf("export: event[%d]: %w", t.Index, err)
		}
		raw, err := json.MarshalIndent(delivery.Envelope(m, RoutingKeyVariable), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: event[%d]: %w", t.Index, err)
		}

		target := eventsURL
		if t.Kind == schedule.KindChange {
			target = changeURL
		}
		itemName := t.Summary
		if itemName == "" {
			itemName = fmt.Sprintf("Event %d", i+1)
		}
		c.Item = append(c.Item, Item{
			Name:        itemName,
			Description: describe(t, summaries[i]),
			Request: Request{
				Method: "POST",
				Header: []Header{{Key: "Content-Type", Value: "application/json"}},
				Body:   Body{Mode: "raw", Raw: string(raw)},
				URL:    target,
			},
		})
	}
	return c, nil
}

func message(t *schedule.Template, res *token.Resolver) (delivery.Message, error) {
	m := delivery.Message{
		Kind:      t.Kind,
		Action:    t.Action,
		Payload:   t.Payload,
		DedupKey:  t.DedupKey,
		Client:    t.Client,
		ClientURL: t.ClientURL,
		Links:     t.Links,
		Template:  t.Index,
		Attempt:   "initial",
		Offset:    t.BaseOffset,
	}
	if res == nil {
		return m, nil
	}

	c := res.ContextFor(t.Index, 0)
	var err error
	if m.Payload, err = res.ResolvePayload(t.Payload, c); err != nil {
		return m, err
	}
	for _, f := range []*string{&m.DedupKey, &m.Client, &m.ClientURL} {
		if *f, err = res.Resolve(*f, c); err != nil {
			return m, err
		}
	}
	if t.Links != nil {
		links, err := res.ResolveValue(t.Links, c)
		if err != nil {
			return m, err
		}
		m.Links = links.([]any)
	}
	return m, nil
}

// describe records the timing metadata Postman cannot express.
func describe(t *schedule.Template, s plan.TemplateSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s event at +%gs", t.Kind, s.InitialOffset)
	if s.TotalRepeats > 0 {
		fmt.Fprintf(&b, ", %d repeats (%d sends total)", s.TotalRepeats, s.TotalSends)
	}
	if s.Flagged {
		b.WriteString(", major failure")
	}
	return b.String()
}

func parseURL(raw, fallback string) (URL, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return URL{}, fmt.Errorf("export: invalid endpoint %q", raw)
	}
	return URL{
		Raw:      raw,
		Protocol: u.Scheme,
		Host:     strings.Split(u.Hostname(), "."),
		Path:     strings.Split(strings.Trim(u.Path, "/"), "/"),
	}, nil
}
