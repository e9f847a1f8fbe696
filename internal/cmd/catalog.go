package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the Environment Catalog",
	RunE:  requireSubcommand,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Dump the loaded viewport, browser, and network profiles",
	RunE:  runCatalogList,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	c, err := wireCore()
	if err != nil {
		return err
	}

	fmt.Println("Viewports:")
	for _, v := range c.cat.ListAllViewports() {
		fmt.Printf("  %-20s %dx%d  mobile=%v  class=%s\n", v.Name, v.Width, v.Height, v.IsMobile, v.DeviceClass)
	}

	fmt.Println("Browsers:")
	for _, b := range c.cat.ListAllBrowsers() {
		fmt.Printf("  %-20s engine=%s  platform=%s\n", b.Name, b.Engine, b.Platform)
	}

	fmt.Println("Networks:")
	for _, n := range c.cat.ListAllNetworks() {
		fmt.Printf("  %-20s latency=%dms  down=%dkbps  up=%dkbps  loss=%.1f%%\n",
			n.Name, n.LatencyMs, n.DownloadKbps, n.UploadKbps, n.PacketLossPct)
	}
	return nil
}
