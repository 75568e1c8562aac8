// Package wizard provides the terminal prompts of the promptvs CLI.
// Invoke with: promptvs setkey
package wizard

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinReader is shared across all prompts. term.ReadPassword bypasses it via raw fd.
var stdinReader = bufio.NewReader(os.Stdin)

// KeySaver stores the API key override. An empty key clears it.
type KeySaver interface {
	Save(key string) error
}

// SetKey asks for a Gemini API key without echo and stores it as the local override.
// Entering nothing clears the override so the environment default applies again.
func SetKey(version string, saver KeySaver) error {
	printBanner(version)
	fmt.Println("  Paste your Gemini API key. Leave empty to clear the saved key.")
	fmt.Println()
	return setKey(os.Stdout, readSecret, saver)
}

func setKey(out io.Writer, read func(label string) (string, error), saver KeySaver) error {
	key, err := read("API key")
	if err != nil {
		return fmt.Errorf("wizard.SetKey: read: %w", err)
	}
	key = strings.TrimSpace(key)
	if err := saver.Save(key); err != nil {
		return fmt.Errorf("wizard.SetKey: save: %w", err)
	}
	if key == "" {
		fmt.Fprintln(out, "  "+c("\033[33m", "•")+" Saved key cleared. The environment key is used if set.")
		return nil
	}
	fmt.Fprintln(out, "  "+c("\033[32m", "✓")+" Key "+Mask(key)+" saved.")
	return nil
}

// Mask hides all but the last four characters of a key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func printBanner(version string) {
	const width = 44
	fmt.Println()
	fmt.Println(c("\033[36m", "╔"+strings.Repeat("═", width)+"╗"))
	bannerLine("", width)
	bannerLine("  PromptVs "+version, width)
	bannerLine("  Prompt vs Context cost sandbox", width)
	bannerLine("", width)
	fmt.Println(c("\033[36m", "╚"+strings.Repeat("═", width)+"╝"))
	fmt.Println()
}

func bannerLine(text string, width int) {
	pad := width - len(text)
	if pad < 0 {
		pad = 0
	}
	fmt.Println(c("\033[36m", "║") + text + strings.Repeat(" ", pad) + c("\033[36m", "║"))
}

// PrintDashboardURLs prints LAN IPs + localhost. Called by main.go on every start.
func PrintDashboardURLs(port string) {
	var ips []string
	if ifaces, err := net.Interfaces(); err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, _ := iface.Addrs()
			for _, addr := range addrs {
				var ip net.IP
				switch v := addr.(type) {
				case *net.IPNet:
					ip = v.IP
				case *net.IPAddr:
					ip = v.IP
				}
				if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
					ips = append(ips, ip4.String())
				}
			}
		}
	}

	urls := make([]string, 0, len(ips)+1)
	for _, ip := range ips {
		urls = append(urls, fmt.Sprintf("http://%s:%s", ip, port))
	}
	urls = append(urls, fmt.Sprintf("http://localhost:%s", port))

	fmt.Println()
	fmt.Printf("  API → %s/api/v1\n", urls[0])
	for _, u := range urls[1:] {
		fmt.Printf("        %s/api/v1\n", u)
	}
	fmt.Println()
}

// readSecret reads without echo on a terminal, or a plain line when piped.
func readSecret(label string) (string, error) {
	fmt.Printf("  %s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("ReadPassword: %w", err)
		}
		return string(raw), nil
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func supportsColor() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func c(ansi, text string) string {
	if !supportsColor() {
		return text
	}
	return ansi + text + "\033[0m"
}
