package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/papyrix-bringup/internal/bringup"
	"github.com/bigbag/papyrix-bringup/internal/detect"
	"github.com/bigbag/papyrix-bringup/internal/httpd"
	"github.com/bigbag/papyrix-bringup/internal/log"
	"github.com/bigbag/papyrix-bringup/internal/partition"
	"github.com/bigbag/papyrix-bringup/internal/protocol"
	"github.com/bigbag/papyrix-bringup/internal/report"
	"github.com/bigbag/papyrix-bringup/internal/serial"
	"github.com/bigbag/papyrix-bringup/internal/tablesource"
	"github.com/bigbag/papyrix-bringup/internal/wifi"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	ssidFlag     string
	passwordFlag string
	hiddenFlag   bool
	authFlag     string
	channelFlag  uint8
	httpPortFlag int
	routeFlag    string
	bodyFlag     string
	tableFlag    string
	portFlag     string
	baudFlag     int
	formatFlag   string
	debugFlag    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "papyrix-bringup",
		Short: "Access point bring-up and partition table inspection for ESP32-C3",
		Long: `Papyrix Bringup brings up a simulated ESP32-C3 access point, reports
radio and IP lifecycle events, prints the partition table and serves a
minimal HTTP route until interrupted.

The partition table is read from the image embedded in this tool, from an
ESP-IDF partition table file, or from a device over its ROM bootloader.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugFlag {
				log.SetDebugMode()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	defaults := bringup.DefaultConfig()

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Bring up the access point and HTTP responder",
		Long: `Bring up the access point, subscribe to WIFI_EVENT and IP_EVENT,
print the partition table and serve a GET route until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runBringup,
	}
	runCmd.Flags().StringVar(&ssidFlag, "ssid", defaults.AccessPoint.SSID, "Access point SSID")
	runCmd.Flags().StringVar(&passwordFlag, "password", "", "Access point passphrase (required unless --auth none)")
	runCmd.Flags().BoolVar(&hiddenFlag, "hidden", false, "Do not broadcast the SSID")
	runCmd.Flags().StringVar(&authFlag, "auth", defaults.AccessPoint.Auth.String(), "Auth method: none, wep, wpa, wpa2, wpa-wpa2, wpa3")
	runCmd.Flags().Uint8Var(&channelFlag, "channel", defaults.AccessPoint.Channel, "Radio channel (1-13)")
	runCmd.Flags().IntVar(&httpPortFlag, "http-port", httpd.DefaultPort, "HTTP responder port")
	runCmd.Flags().StringVar(&routeFlag, "route", bringup.DefaultRoute, "HTTP GET route")
	runCmd.Flags().StringVar(&bodyFlag, "body", bringup.DefaultBody, "HTTP response body")
	addTableFlags(runCmd)

	// Partitions command
	partitionsCmd := &cobra.Command{
		Use:   "partitions",
		Short: "Print the partition table",
		Args:  cobra.NoArgs,
		RunE:  runPartitions,
	}
	addTableFlags(partitionsCmd)

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show device info",
		Long:  "Detect and show information about connected ESP32 devices.",
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (auto-detect if not specified)")
	infoCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("papyrix-bringup %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(runCmd, partitionsCmd, infoCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addTableFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tableFlag, "table", tablesource.Embedded, "Partition table source: embedded, device or a file path")
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port for --table device (auto-detect if not specified)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate for --table device")
	cmd.Flags().StringVar(&formatFlag, "format", report.FormatText, "Report format: text or json")
}

// tableSource returns the partition table loader selected by the flags. A
// device read shows a progress bar.
func tableSource() func() (partition.Table, error) {
	opts := tablesource.DeviceOptions{Port: portFlag, BaudRate: baudFlag}

	if tableFlag == tablesource.Device {
		bar := progressbar.NewOptions(protocol.PartitionTableSize,
			progressbar.OptionSetDescription("Reading partition table"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100),
			progressbar.OptionClearOnFinish(),
		)
		opts.Progress = func(current, total int) {
			bar.Set(current)
			if current == total {
				bar.Finish()
			}
		}
	}

	return tablesource.Open(tableFlag, opts)
}

func runBringup(cmd *cobra.Command, args []string) error {
	auth, err := wifi.ParseAuthMethod(authFlag)
	if err != nil {
		return err
	}

	cfg := bringup.DefaultConfig()
	cfg.AccessPoint.SSID = ssidFlag
	cfg.AccessPoint.Password = passwordFlag
	cfg.AccessPoint.Hidden = hiddenFlag
	cfg.AccessPoint.Auth = auth
	cfg.AccessPoint.Channel = channelFlag
	cfg.HTTPPort = httpPortFlag
	cfg.Route = routeFlag
	cfg.Body = bodyFlag

	out, err := report.NewWriter(os.Stdout, formatFlag, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := bringup.New(cfg, bringup.DefaultPlatform(tableSource()), out)
	return c.Run(ctx)
}

func runPartitions(cmd *cobra.Command, args []string) error {
	out, err := report.NewWriter(os.Stdout, formatFlag, true)
	if err != nil {
		return err
	}

	table, err := tableSource()()
	if err != nil {
		return err
	}

	_, err = report.Print(out, table)
	return err
}

func runInfo(cmd *cobra.Command, args []string) error {
	d := detect.New()

	if portFlag != "" {
		// Check specific port
		result, err := d.OnPort(portFlag, baudFlag)
		if err != nil {
			return fmt.Errorf("failed to detect device on %s: %w", portFlag, err)
		}
		printDeviceInfo(result)
		return nil
	}

	// Auto-detect
	fmt.Println("Scanning for ESP32 devices...")
	devices, err := d.All(baudFlag)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No ESP32 devices found")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, dev := range devices {
		fmt.Printf("Device %d:\n", i+1)
		printDeviceInfo(&dev)
		fmt.Println()
	}

	return nil
}

func printDeviceInfo(d *detect.Result) {
	fmt.Printf("  Port:     %s\n", d.Port)
	if d.Bridge != "" {
		fmt.Printf("  Bridge:   %s\n", d.Bridge)
	}
	fmt.Printf("  Chip:     %s\n", d.ChipName)
	if d.ChipID != 0 {
		fmt.Printf("  Chip ID:  0x%02X\n", d.ChipID)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPortDetails()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		if bridge := p.Bridge(); bridge != "" {
			fmt.Printf("  %-20s %s (%s:%s)\n", p.Name, bridge, p.VID, p.PID)
			continue
		}
		fmt.Printf("  %s\n", p.Name)
	}

	return nil
}
