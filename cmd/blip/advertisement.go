package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/srg/blip/internal/peripheral"
)

// advertisementCmd represents the advertisement command
var advertisementCmd = &cobra.Command{
	Use:   "advertisement",
	Short: "Show the advertising packet the peripheral would send",
	Long: `Encodes the advertising data for the configured profile without touching
the radio and prints it as hex together with the decoded fields.

Examples:
  blip advertisement
  blip advertisement --name a-rather-long-device-name
  blip advertisement --config blip.yaml --tx-power`,
	Args: cobra.NoArgs,
	RunE: runAdvertisement,
}

var (
	advName    string
	advTxPower bool
)

func init() {
	advertisementCmd.Flags().StringVar(&advName, "name", "", "Device name (overrides device_name)")
	advertisementCmd.Flags().BoolVar(&advTxPower, "tx-power", false, "Include the TX power level field")
}

func runAdvertisement(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if advName != "" {
		cfg.DeviceName = advName
	}
	opts, err := cfg.PeripheralOptions()
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	payload := peripheral.AdvertisePayload{
		IncludeDeviceName:   true,
		IncludeTxPowerLevel: advTxPower,
		TxPowerLevel:        opts.Settings.TxPower.DBm(),
		ServiceUUIDs:        []uuid.UUID{opts.ServiceID},
	}
	return printAdvertisement(cmd.OutOrStdout(), payload, opts.DeviceName)
}

// printAdvertisement encodes payload for name and writes a human-readable dump.
func printAdvertisement(w io.Writer, payload peripheral.AdvertisePayload, name string) error {
	data, err := payload.Encode(name)
	if err != nil {
		return err
	}
	adv, err := peripheral.DecodeAdvertisement(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Advertising data (%d/%d bytes):\n  %s\n\n", len(data), peripheral.MaxAdvertisementLength, hex.EncodeToString(data))
	fmt.Fprintf(w, "Flags:    0x%02x\n", adv.Flags)
	switch {
	case adv.LocalName == "":
		fmt.Fprintln(w, "Name:     (omitted, no room left)")
	case adv.ShortName:
		fmt.Fprintf(w, "Name:     %q (shortened)\n", adv.LocalName)
	default:
		fmt.Fprintf(w, "Name:     %q\n", adv.LocalName)
	}
	if adv.TxPowerLevel != nil {
		fmt.Fprintf(w, "TX power: %d dBm\n", *adv.TxPowerLevel)
	}
	for _, u := range adv.ServiceUUIDs {
		fmt.Fprintf(w, "Service:  %s\n", u)
	}
	return nil
}
