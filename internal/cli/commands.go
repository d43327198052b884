package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/models"
	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/peer"
)

// ChannelStore is the channel history, nil when the database is disabled.
type ChannelStore interface {
	Record(ch asterisk.Channel, origin string) error
	Recent(limit int) ([]models.ChannelRecord, error)
	ProtocolCounts() (map[asterisk.Protocol]int, error)
}

var errNoDatabase = errors.New("database is disabled")

var (
	peerMgr      *peer.Manager
	channelStore ChannelStore
)

func InitCLI(pm *peer.Manager, store ChannelStore) *cobra.Command {
	peerMgr = pm
	channelStore = store

	rootCmd := &cobra.Command{
		Use:   "normalizer",
		Short: "Asterisk channel normalizer",
		Long: `Asterisk channel normalizer

Parse channel identifiers, protocol tokens and Asterisk booleans, and
manage the peers channels are matched against.`,
		SilenceUsage: true,
	}

	parseCmd := &cobra.Command{
		Use:   "parse <channel...>",
		Short: "Parse channel identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE:  parseChannels,
	}
	parseCmd.Flags().BoolP("save", "s", false, "Store parsed channels in history")

	protocolCmd := &cobra.Command{
		Use:   "protocol <token...>",
		Short: "Check technology tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE:  checkProtocols,
	}

	boolCmd := &cobra.Command{
		Use:   "bool <value...>",
		Short: "Decode Asterisk boolean values",
		Args:  cobra.MinimumNArgs(1),
		RunE:  parseBools,
	}

	titleCmd := &cobra.Command{
		Use:   "title <channel...>",
		Short: "Show channel titles",
		Args:  cobra.MinimumNArgs(1),
		RunE:  showTitles,
	}

	// Peer commands
	peerCmd := &cobra.Command{
		Use:   "peer",
		Short: "Manage peers",
	}

	peerAddCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a peer",
		Args:  cobra.ExactArgs(1),
		RunE:  addPeer,
	}
	peerAddCmd.Flags().StringP("protocol", "p", "", "Protocol: LOCAL, SIP, PJSIP, IAX, IAX2, MESSAGE (required)")
	peerAddCmd.Flags().StringP("context", "c", "", "Dialplan context")
	peerAddCmd.Flags().String("active", "yes", "Active (yes/no)")
	peerAddCmd.MarkFlagRequired("protocol")

	peerListCmd := &cobra.Command{
		Use:   "list",
		Short: "List peers",
		RunE:  listPeers,
	}
	peerListCmd.Flags().StringP("protocol", "p", "", "Filter by protocol")

	peerShowCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show peer details",
		Args:  cobra.ExactArgs(1),
		RunE:  showPeer,
	}

	peerDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a peer",
		Args:  cobra.ExactArgs(1),
		RunE:  deletePeer,
	}

	peerImportCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import peers from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  importPeers,
	}

	peerChannelCmd := &cobra.Command{
		Use:   "channel <name>",
		Short: "Show the channel addressing a peer",
		Args:  cobra.ExactArgs(1),
		RunE:  showPeerChannel,
	}

	peerCmd.AddCommand(peerAddCmd, peerListCmd, peerShowCmd, peerDeleteCmd, peerImportCmd, peerChannelCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently normalized channels",
		RunE:  showHistory,
	}
	historyCmd.Flags().IntP("limit", "l", 20, "Number of records to show")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show channel and peer statistics",
		RunE:  showStats,
	}

	rootCmd.AddCommand(parseCmd, protocolCmd, boolCmd, titleCmd, peerCmd, historyCmd, statsCmd)

	return rootCmd
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func parseChannels(cmd *cobra.Command, args []string) error {
	save, _ := cmd.Flags().GetBool("save")
	if save && channelStore == nil {
		return errNoDatabase
	}

	out := cmd.OutOrStdout()
	table := newTable(out, "Channel", "Protocol", "Name", "Suffix", "Context", "Title", "Peer")

	failed := 0
	for _, source := range args {
		ch, err := asterisk.ParseChannel(source)
		if err != nil {
			failed++
			table.Append([]string{source, color.RedString(asterisk.ErrorKind(err)), "", "", "", "", ""})
			continue
		}

		peerName := ""
		if p, ok := peerMgr.Match(ch); ok {
			peerName = p.Name
		}

		table.Append([]string{ch.ID, ch.Protocol.String(), ch.Name, ch.Suffix, ch.Context, ch.Title(), peerName})

		if save {
			if err := channelStore.Record(ch, "cli"); err != nil {
				return err
			}
		}
	}

	table.Render()
	if failed > 0 {
		return errors.Errorf("%d of %d channels could not be parsed", failed, len(args))
	}
	return nil
}

func checkProtocols(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	invalid := 0
	for _, token := range args {
		if p, ok := asterisk.TryNormalizeProtocol(token); ok {
			fmt.Fprintf(out, "%s %q => %s\n", color.GreenString("✓"), token, p)
		} else {
			invalid++
			fmt.Fprintf(out, "%s %q is not a known protocol\n", color.RedString("✗"), token)
		}
	}

	if invalid > 0 {
		return errors.Wrapf(asterisk.ErrUnrecognizedProtocol, "%d tokens", invalid)
	}
	return nil
}

func parseBools(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	table := newTable(out, "Value", "Boolean", "Asterisk")

	var firstErr error
	for _, value := range args {
		v, err := asterisk.ParseBool(value)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			table.Append([]string{value, color.RedString(asterisk.ErrorKind(err)), ""})
			continue
		}

		decoded := "unset"
		if v != nil {
			decoded = strconv.FormatBool(*v)
		}
		canonical, ok := asterisk.FormatBool(v)
		if !ok {
			canonical = "-"
		}
		table.Append([]string{value, decoded, canonical})
	}

	table.Render()
	return firstErr
}

func showTitles(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, channel := range args {
		fmt.Fprintf(out, "%s\t%s\n", channel, asterisk.ChannelTitle(channel))
	}
	return nil
}

// Peer command handlers
func addPeer(cmd *cobra.Command, args []string) error {
	name := args[0]

	protocolToken, _ := cmd.Flags().GetString("protocol")
	context, _ := cmd.Flags().GetString("context")
	activeStr, _ := cmd.Flags().GetString("active")

	protocol, err := asterisk.NormalizeProtocol(protocolToken)
	if err != nil {
		return err
	}
	active, err := asterisk.ParseBool(activeStr)
	if err != nil {
		return errors.Wrap(err, "--active")
	}

	p := &models.Peer{
		Name:     name,
		Protocol: protocol,
		Context:  context,
		Active:   active == nil || *active,
	}
	if err := peerMgr.AddPeer(p); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.GreenString("✓ Peer '%s' added successfully", name))
	fmt.Fprintf(out, "  Channel: %s\n", asterisk.ChannelFromPeer(p.Info()).ID)
	if context != "" {
		fmt.Fprintf(out, "  Context: %s\n", context)
	}
	return nil
}

func listPeers(cmd *cobra.Command, args []string) error {
	filter, _ := cmd.Flags().GetString("protocol")

	protocol := asterisk.ProtocolUnknown
	if filter != "" {
		var err error
		if protocol, err = asterisk.NormalizeProtocol(filter); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	peers := peerMgr.ListPeers(protocol)
	if len(peers) == 0 {
		fmt.Fprintln(out, "No peers found")
		return nil
	}

	table := newTable(out, "Name", "Protocol", "Channel", "Context", "Status")
	for _, p := range peers {
		status := color.GreenString("Active")
		if !p.Active {
			status = color.RedString("Inactive")
		}
		table.Append([]string{
			p.Name,
			p.Protocol.String(),
			asterisk.ChannelFromPeer(p.Info()).ID,
			p.Context,
			status,
		})
	}

	table.Render()
	fmt.Fprintf(out, "\nTotal: %d peers\n", len(peers))
	return nil
}

func showPeer(cmd *cobra.Command, args []string) error {
	p, err := peerMgr.GetPeer(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nPeer: %s\n", p.Name)
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintf(out, "Protocol: %s\n", p.Protocol)
	fmt.Fprintf(out, "Channel: %s\n", asterisk.ChannelFromPeer(p.Info()).ID)
	if p.Context != "" {
		fmt.Fprintf(out, "Context: %s\n", p.Context)
	}
	active, _ := asterisk.FormatBool(asterisk.Bool(p.Active))
	fmt.Fprintf(out, "Active: %s\n", active)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func deletePeer(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := peerMgr.DeletePeer(name); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Peer '%s' deleted successfully", name))
	return nil
}

func showPeerChannel(cmd *cobra.Command, args []string) error {
	ch, err := peerMgr.Channel(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Channel: %s\n", ch.ID)
	fmt.Fprintf(out, "Protocol: %s\n", ch.Protocol)
	fmt.Fprintf(out, "Name: %s\n", ch.Name)
	return nil
}

func importPeers(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open peers file")
	}
	defer f.Close()

	n, err := peerMgr.Import(f)
	if err != nil {
		return errors.Wrapf(err, "imported %d peers before failing", n)
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Imported %d peers", n))
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	if channelStore == nil {
		return errNoDatabase
	}
	limit, _ := cmd.Flags().GetInt("limit")

	records, err := channelStore.Recent(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No channels recorded")
		return nil
	}

	table := newTable(out, "Time", "Channel", "Protocol", "Title", "Origin")
	for _, r := range records {
		table.Append([]string{
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.ChannelID,
			r.Protocol.String(),
			r.Title,
			r.Origin,
		})
	}
	table.Render()
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	peerStats := peerMgr.Stats()
	var channelStats map[asterisk.Protocol]int
	if channelStore != nil {
		var err error
		if channelStats, err = channelStore.ProtocolCounts(); err != nil {
			return err
		}
	}

	protocols := append([]asterisk.Protocol{asterisk.ProtocolUnknown}, asterisk.Protocols()...)
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].String() < protocols[j].String() })

	table := newTable(out, "Protocol", "Peers", "Channels")
	for _, p := range protocols {
		channels := "-"
		if channelStats != nil {
			channels = strconv.Itoa(channelStats[p])
		}
		table.Append([]string{p.String(), strconv.Itoa(peerStats[p]), channels})
	}
	table.Render()
	return nil
}
