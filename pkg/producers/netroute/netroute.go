// Package netroute provides the default-route producer: the name of the
// interface carrying the IPv4 default route, read from /proc/net/route.
// Without a default route it renders a red "No link".
package netroute

import (
	"bufio"
	"os"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// routeTable is the kernel's IPv4 routing table.
const routeTable = "/proc/net/route"

// Producer renders the default-route interface.
type Producer struct {
	path string
}

// New creates a default-route producer.
func New() *Producer {
	return &Producer{path: routeTable}
}

// Render implements bar.Producer. A missing route table (non-Linux /proc)
// omits the producer; an empty table renders "No link".
func (p *Producer) Render() *bar.Snapshot {
	f, err := os.Open(p.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		// Destination 00000000 marks the default route.
		if fields[1] == "00000000" {
			return &bar.Snapshot{FullText: fields[0]}
		}
	}
	return &bar.Snapshot{
		FullText: "No link",
		Color:    bar.ColorAlert,
	}
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}
