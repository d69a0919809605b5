package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendAddr     string
	sendLine     string
	sendScenario string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Fire test log lines at a running daemon",
	Long:  "Sends raw Half-Life log lines over UDP, either one --line or a canned --scenario.",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "127.0.0.1:27500", "daemon UDP address")
	sendCmd.Flags().StringVar(&sendLine, "line", "", "raw log line to send")
	sendCmd.Flags().StringVar(&sendScenario, "scenario", "", "canned scenario (kill)")
}

// logLine stamps a payload the way HLDS does.
func logLine(payload string) string {
	return fmt.Sprintf("L %s: %s", time.Now().Format("01/02/2006 - 15:04:05"), payload)
}

func scenarioLines(name string) ([]string, error) {
	switch name {
	case "kill":
		return []string{
			logLine(`World triggered "Round_Start"`),
			logLine(`"Alice<1><STEAM_0:0:111><CT>" [100 200 10] killed "Bob<2><STEAM_0:0:222><TERRORIST>" [150 180 10] with "ak47" (headshot)`),
			logLine(`"Bob<2><STEAM_0:0:222><TERRORIST>" [150 180 10] killed "Carol<3><STEAM_0:0:333><CT>" [90 210 10] with "glock"`),
			logLine(`Team "CT" triggered "CTs_Win" (CT "1") (T "0")`),
		}, nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	var lines []string
	switch {
	case sendLine != "":
		lines = []string{sendLine}
	case sendScenario != "":
		var err error
		if lines, err = scenarioLines(sendScenario); err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --line or --scenario is required")
	}

	addr, err := net.ResolveUDPAddr("udp", sendAddr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", sendAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sendAddr, err)
	}
	defer conn.Close()

	for _, line := range lines {
		if _, err := conn.Write([]byte(line)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		fmt.Printf("sent: %s\n", line)
		// Keep ordering stable through the daemon's lanes.
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
