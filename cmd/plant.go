package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

var plantCmd = &cobra.Command{
	Use:   "plant",
	Short: "Manage plants through the backend gRPC API",
}

func init() {
	rootCmd.AddCommand(plantCmd)

	plantCmd.PersistentFlags().String("addr", "localhost:9090", "backend gRPC address")
	plantCmd.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")
	plantCmd.PersistentFlags().Bool("json", false, "print responses as JSON")
	_ = viper.BindPFlag("plant.addr", plantCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("plant.timeout", plantCmd.PersistentFlags().Lookup("timeout"))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plants",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, _ []string) error {
			auto, _ := cmd.Flags().GetBool("automatic")
			resp, err := c.ListPlants(ctx, &plantapi.ListPlantsRequest{AutomaticOnly: auto})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), resp.Plants)
			}
			return printPlants(cmd.OutOrStdout(), resp.Plants)
		}),
	}
	listCmd.Flags().Bool("automatic", false, "only plants with automatic watering")

	showCmd := &cobra.Command{
		Use:   "show PLANT_ID",
		Short: "Show a plant and its most recent log entries",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			plant, err := c.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: args[0]})
			if err != nil {
				return err
			}
			size, _ := cmd.Flags().GetInt32("logs")
			token, _ := cmd.Flags().GetString("page-token")
			logs, err := c.GetPlantLogs(ctx, &plantapi.GetPlantLogsRequest{
				PlantID:   args[0],
				PageSize:  size,
				PageToken: token,
			})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"plant":           plant.Plant,
					"logs":            logs.Logs,
					"next_page_token": logs.NextPageToken,
				})
			}
			return printPlant(cmd.OutOrStdout(), plant.Plant, logs)
		}),
	}
	showCmd.Flags().Int32("logs", 10, "number of log entries to show")
	showCmd.Flags().String("page-token", "", "page token from a previous call")

	waterCmd := &cobra.Command{
		Use:   "water PLANT_ID",
		Short: "Water a plant now",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			resp, err := c.WaterPlant(ctx, &plantapi.WaterPlantRequest{PlantID: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watered %s (log %s)\n", args[0], resp.LogID)
			return nil
		}),
	}

	autoCmd := &cobra.Command{
		Use:       "auto PLANT_ID on|off",
		Short:     "Enable or disable automatic watering",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			resp, err := c.SetAutomaticWatering(ctx, &plantapi.SetAutomaticWateringRequest{PlantID: args[0], Enabled: enabled})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "automatic watering of %s: %t\n", resp.Plant.ID, resp.Plant.AutomaticWatering)
			return nil
		}),
	}

	policyCmd := &cobra.Command{
		Use:   "policy PLANT_ID",
		Short: "Change a plant's watering policy",
		Long: `Change a plant's watering policy. Only the flags given are changed.
A threshold of 0 clears it, --clear-frequency and --clear-quantity clear those settings.`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			req, err := policyRequest(args[0], cmd.Flags())
			if err != nil {
				return err
			}
			resp, err := c.UpdatePolicy(ctx, req)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), resp.Plant)
			}
			return printPlant(cmd.OutOrStdout(), resp.Plant, nil)
		}),
	}
	pf := policyCmd.Flags()
	pf.Int("frequency", 0, "days between waterings")
	pf.Int("quantity", 0, "water quantity in ml")
	pf.Float64("soil-moisture", 0, "water when soil moisture drops below this value")
	pf.Float64("humidity", 0, "water when air humidity drops below this value")
	pf.Float64("temperature", 0, "water when temperature rises above this value")
	pf.Float64("luminosity", 0, "water when luminosity rises above this value")
	pf.Bool("clear-frequency", false, "unset the watering frequency")
	pf.Bool("clear-quantity", false, "unset the water quantity")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate PLANT_ID",
		Short: "Show the current automatic watering decision",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			apply, _ := cmd.Flags().GetBool("apply")
			resp, err := c.EvaluatePlant(ctx, &plantapi.EvaluatePlantRequest{PlantID: args[0], Apply: apply})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "decision: %s\n", resp.Decision)
			for _, r := range resp.Rules {
				fmt.Fprintf(cmd.OutOrStdout(), "  rule: %s\n", r)
			}
			if resp.Watered {
				fmt.Fprintf(cmd.OutOrStdout(), "watered (log %s)\n", resp.LogID)
			}
			return nil
		}),
	}
	evaluateCmd.Flags().Bool("apply", false, "water the plant if the decision is water_now")

	deleteCmd := &cobra.Command{
		Use:   "delete PLANT_ID",
		Short: "Delete a plant and its log",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error {
			if _, err := c.DeletePlant(ctx, &plantapi.DeletePlantRequest{PlantID: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	plantCmd.AddCommand(listCmd, showCmd, waterCmd, autoCmd, policyCmd, evaluateCmd, deleteCmd)
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, c plantapi.PlantServiceClient, args []string) error

// withClient dials the backend for the duration of one command.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		conn, err := grpc.NewClient(viper.GetString("plant.addr"),
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect to backend: %w", err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("plant.timeout"))
		defer cancel()

		return fn(ctx, cmd, plantapi.NewPlantServiceClient(conn), args)
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// policyRequest builds an UpdatePolicyRequest from the flags that were set.
func policyRequest(plantID string, f *pflag.FlagSet) (*plantapi.UpdatePolicyRequest, error) {
	req := &plantapi.UpdatePolicyRequest{PlantID: plantID}
	changed := false

	if f.Changed("frequency") {
		v, _ := f.GetInt("frequency")
		req.WateringFrequency = &v
		changed = true
	}
	if f.Changed("quantity") {
		v, _ := f.GetInt("quantity")
		req.WaterQuantity = &v
		changed = true
	}
	for flag, dst := range map[string]**float64{
		"soil-moisture": &req.SoilMoistureThreshold,
		"humidity":      &req.HumidityThreshold,
		"temperature":   &req.TemperatureThreshold,
		"luminosity":    &req.LuminosityThreshold,
	} {
		if f.Changed(flag) {
			v, _ := f.GetFloat64(flag)
			*dst = &v
			changed = true
		}
	}
	req.ClearWateringFrequency, _ = f.GetBool("clear-frequency")
	req.ClearWaterQuantity, _ = f.GetBool("clear-quantity")

	if !changed && !req.ClearWateringFrequency && !req.ClearWaterQuantity {
		return nil, errors.New("no policy change given")
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlants(w io.Writer, plants []*plantapi.Plant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAUTO\tSOIL\tLAST WATERED\tPUMP")
	for _, p := range plants {
		soil := "-"
		if p.Latest != nil {
			soil = formatValue(p.Latest.SoilMoisture)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%t\n",
			p.ID, p.Name, p.AutomaticWatering, soil, formatTime(p.LastWatered), p.PumpConnected)
	}
	return tw.Flush()
}

func printPlant(w io.Writer, p *plantapi.Plant, logs *plantapi.GetPlantLogsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	if p.LatinName != "" {
		fmt.Fprintf(tw, "Species:\t%s (%s)\n", p.CommonName, p.LatinName)
	}
	fmt.Fprintf(tw, "Automatic watering:\t%t\n", p.AutomaticWatering)
	fmt.Fprintf(tw, "Frequency (days):\t%s\n", formatInt(p.Policy.WateringFrequency))
	fmt.Fprintf(tw, "Quantity (ml):\t%s\n", formatInt(p.Policy.WaterQuantity))
	fmt.Fprintf(tw, "Soil moisture below:\t%s\n", formatValue(p.Policy.SoilMoistureThreshold))
	fmt.Fprintf(tw, "Humidity below:\t%s\n", formatValue(p.Policy.HumidityThreshold))
	fmt.Fprintf(tw, "Temperature above:\t%s\n", formatValue(p.Policy.TemperatureThreshold))
	fmt.Fprintf(tw, "Luminosity above:\t%s\n", formatValue(p.Policy.LuminosityThreshold))
	fmt.Fprintf(tw, "Last watered:\t%s\n", formatTime(p.LastWatered))
	fmt.Fprintf(tw, "Pump connected:\t%t\n", p.PumpConnected)
	if err := tw.Flush(); err != nil {
		return err
	}

	if logs == nil || len(logs.Logs) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSOIL\tHUMIDITY\tTEMP\tLIGHT\tWATERED")
	for _, l := range logs.Logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			l.CreatedAt.Local().Format(time.DateTime),
			formatValue(l.Reading.SoilMoisture),
			formatValue(l.Reading.Humidity),
			formatValue(l.Reading.Temperature),
			formatValue(l.Reading.Luminosity),
			l.WasWatered,
		)
	}
	if logs.NextPageToken != "" {
		fmt.Fprintf(tw, "more: --page-token %s\n", logs.NextPageToken)
	}
	return tw.Flush()
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
