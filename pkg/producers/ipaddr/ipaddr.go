// Package ipaddr provides the connectivity producer: the default-route
// interface, the wifi connection name NetworkManager reports for it, and
// its IPv4 address, joined as "iface - ssid - addr". Wired links have no
// ssid part; an interface still waiting for an address has no addr part.
// Without a default route it renders a red "No link".
package ipaddr

import (
	"bufio"
	"net"
	"os"
	"os/exec"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// routeTable is the kernel's IPv4 routing table.
const routeTable = "/proc/net/route"

// Producer renders the default-route interface with its address and ssid.
type Producer struct {
	path   string
	addrOf func(iface string) string
	ssidOf func(iface string) string
}

// New creates a connectivity producer.
func New() *Producer {
	return &Producer{
		path:   routeTable,
		addrOf: interfaceAddr,
		ssidOf: nmSSID,
	}
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
		if fields[1] != "00000000" {
			continue
		}
		iface := fields[0]
		text := iface
		if ssid := strings.TrimSpace(p.ssidOf(iface)); ssid != "" {
			text += " - " + ssid
		}
		if addr := strings.TrimSpace(p.addrOf(iface)); addr != "" {
			text += " - " + addr
		}
		return &bar.Snapshot{FullText: text}
	}
	return &bar.Snapshot{
		FullText: "No link",
		Color:    bar.ColorAlert,
	}
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}

// interfaceAddr returns the interface's first IPv4 address, or "" when the
// interface has none yet.
func interfaceAddr(iface string) string {
	netif, err := net.InterfaceByName(iface)
	if err != nil {
		return ""
	}
	addrs, err := netif.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

// nmSSID returns the NetworkManager wifi connection name active on the
// interface, or "" for wired links and machines without nmcli.
func nmSSID(iface string) string {
	out, err := exec.Command("nmcli", "connection", "show").Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, iface) || !strings.Contains(line, "wifi") {
			continue
		}
		// The connection name is the first column of nmcli's table.
		name, _, _ := strings.Cut(line, "  ")
		return name
	}
	return ""
}
