package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/client"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/mapping"
)

var connectCmd = &cobra.Command{
	Use:   "connect <endpoint>",
	Short: "Open an input session against a host",
	Long: `Connect to a MobControl host, pair with its rotating code if needed,
then forward stdin to the host. Plain lines are sent as keyboard text;
lines of the form "/<button>" tap a controller button (e.g. /btn_a,
/dpad-up). With --layout, button names resolve through a layout mapping
file first, so "/jump" can expand to a target or a timed combo.

Endpoints come from "mobctl scan", e.g. ws://192.168.1.20:8181. A /qr
endpoint from a scanned code pairs without prompting.

Examples:
  mobctl connect ws://192.168.1.20:8181
  mobctl connect --name "Workbench" ws://192.168.1.20:8181/qr
  mobctl connect --layout layout.json ws://192.168.1.20:8181
`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var (
	connectName   string
	connectLayout string
)

func init() {
	defaultName := "mobctl"
	if hostname, err := os.Hostname(); err == nil {
		defaultName = "mobctl@" + hostname
	}
	connectCmd.Flags().StringVar(&connectName, "name", defaultName, "Display name shown on the host")
	connectCmd.Flags().StringVar(&connectLayout, "layout", "", "Layout mapping file for /button commands")
	rootCmd.AddCommand(connectCmd)
}

func loadLayout(path string) (mapping.Table, error) {
	if path == "" {
		return mapping.Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read layout %s: %w", path, err)
	}
	var table mapping.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("could not parse layout %s: %w", path, err)
	}
	return table, nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	endpoint := args[0]

	layout, err := loadLayout(connectLayout)
	if err != nil {
		return err
	}

	states := make(chan client.State, 8)
	failures := make(chan string, 8)
	c := client.New(connectName, client.Callbacks{
		OnStateChange: func(s client.State) { states <- s },
		OnConnectionFailed: func(reason, detail string) {
			failures <- fmt.Sprintf("%s: %s", reason, detail)
		},
	})

	fmt.Printf("Connecting to %s...\n", endpoint)
	if err := c.Connect(cmd.Context(), endpoint); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)

	// A trusted endpoint verifies on its own; otherwise the host stays
	// silent until we submit a pairing code.
	prompt := time.After(2 * time.Second)
wait:
	for {
		select {
		case s := <-states:
			switch s {
			case client.StateConnected:
				break wait
			case client.StateDisconnected:
				select {
				case msg := <-failures:
					return fmt.Errorf("%s", msg)
				default:
					return fmt.Errorf("host closed the session")
				}
			}
		case msg := <-failures:
			c.Disconnect()
			return fmt.Errorf("%s", msg)
		case <-prompt:
			fmt.Print("Pairing code: ")
			if !scanner.Scan() {
				c.Disconnect()
				return nil
			}
			if err := c.SubmitOTP(strings.TrimSpace(scanner.Text())); err != nil {
				return err
			}
			prompt = time.After(10 * time.Second)
		}
	}

	fmt.Println("Connected. Lines are sent as keyboard text, /<button> taps a button; Ctrl-D to quit.")
	seq := mapping.NewSequencer(layout, clockwork.NewRealClock(), func(id string, pressed bool) {
		c.SendButton(id, pressed)
	})
	for scanner.Scan() {
		if c.State() != client.StateConnected {
			break
		}
		line := scanner.Text()
		if strings.HasPrefix(line, "/") {
			id := strings.TrimPrefix(line, "/")
			seq.Press(id)
			time.Sleep(mapping.DefaultHold)
			seq.Release(id)
			continue
		}
		if err := c.SendText(line); err != nil {
			return err
		}
	}

	select {
	case msg := <-failures:
		return fmt.Errorf("%s", msg)
	default:
	}
	c.Disconnect()
	return nil
}
