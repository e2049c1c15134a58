package flags

import "github.com/spf13/cobra"

const (
	// AssumeYesFlagName exposes the shared assume-yes flag name.
	AssumeYesFlagName = "yes"
	// AssumeYesFlagShorthand provides the shorthand for the assume-yes flag.
	AssumeYesFlagShorthand = "y"
	// AssumeYesFlagUsage describes the shared assume-yes flag purpose.
	AssumeYesFlagUsage = "Confirm destructive operations without prompting"
)

// BindAssumeYesFlag attaches the --yes flag to a destructive command.
func BindAssumeYesFlag(command *cobra.Command) {
	if command == nil {
		return
	}
	command.Flags().BoolP(AssumeYesFlagName, AssumeYesFlagShorthand, false, AssumeYesFlagUsage)
}

// ResolveAssumeYes returns the --yes flag value when it was set explicitly and configuredValue otherwise.
func ResolveAssumeYes(command *cobra.Command, configuredValue bool) bool {
	if command == nil {
		return configuredValue
	}
	flagSet := command.Flags()
	if flagSet.Lookup(AssumeYesFlagName) == nil || !flagSet.Changed(AssumeYesFlagName) {
		return configuredValue
	}
	flagValue, flagError := flagSet.GetBool(AssumeYesFlagName)
	if flagError != nil {
		return configuredValue
	}
	return flagValue
}
