// Package cli provides the command line interface.
package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codecat/internal/config"
	"codecat/internal/engine"
	"codecat/internal/ignore"
	"codecat/internal/output"
	"codecat/internal/services/clipboard"
	"codecat/internal/snapshot"
	"codecat/internal/tokenizer"
	"codecat/internal/types"
	"codecat/internal/utils"
)

const (
	exclusionFlagName   = "e"
	noGitignoreFlagName = "no-gitignore"
	noBuiltinFlagName   = "no-builtin"
	formatFlagName      = "format"
	tokensFlagName      = "tokens"
	modelFlagName       = "model"
	outputFlagName      = "output"
	copyFlagName        = "copy"
	configFlagName      = "config"
	versionFlagName     = "version"
	versionTemplate     = "codecat version: %s\n"

	defaultPath            = "."
	defaultOutputDirectory = "output"

	rootUse              = "codecat"
	rootShortDescription = "codecat command line interface"
	rootLongDescription  = `codecat ingests a repository tree, filters it through layered ignore rules,
and produces a single concatenated text artifact plus aggregate statistics.
Use estimate for a free size pre-check and commit for the full computation.
Use --format to select raw or json output.`

	estimateUse              = "estimate [path]"
	estimateAlias            = "e"
	estimateShortDescription = "estimate file count and size for a path (" + estimateAlias + ")"
	estimateLongDescription  = `Run the free pricing pass over a directory: compile the ignore rules and
report the fingerprint, the included file count, and the byte total.
No line classification runs and nothing is cached.`
	estimateUsageExample = `  # Estimate the current directory
  codecat estimate .

  # Estimate with extra exclusions in JSON
  codecat estimate -e "*.log" --format json ./repo`

	commitUse              = "commit [path]"
	commitAlias            = "c"
	commitShortDescription = "produce the concatenated artifact and statistics (" + commitAlias + ")"
	commitLongDescription  = `Run the full computation over a directory: build the tree, classify every
line, write the concatenated artifact, and report repository statistics.
The local runner acts as its own payment collaborator, so the session is
confirmed immediately.`
	commitUsageExample = `  # Commit the current directory
  codecat commit .

  # Commit with token estimation and copy the artifact to the clipboard
  codecat commit --tokens --copy ./repo`

	exclusionFlagDescription        = "exclude path pattern"
	disableGitignoreFlagDescription = "do not use .gitignore"
	disableBuiltinFlagDescription   = "do not apply builtin default ignores"
	formatFlagDescription           = "output format (raw or json)"
	tokensFlagDescription           = "include a token estimate for the artifact"
	modelFlagDescription            = "tokenizer model to use for token counting"
	outputFlagDescription           = "directory receiving artifact files"
	copyFlagDescription             = "copy the artifact to the system clipboard"
	configFlagDescription           = "path to a configuration file"
	versionFlagDescription          = "display application version"

	invalidFormatMessage        = "invalid format value '%s'"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	localPaymentSessionPrefix   = "local-"
	localPaymentNonceBytes      = 8
)

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON:
		return true
	default:
		return false
	}
}

// Execute runs the codecat application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.AddCommand(
		createEstimateCommand(),
		createCommitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// commandOptions stores the flag values shared by estimate and commit.
type commandOptions struct {
	exclusionPatterns []string
	disableGitignore  bool
	disableBuiltin    bool
	outputFormat      string
	tokensEnabled     bool
	tokenModel        string
	outputDirectory   string
	copyToClipboard   bool
	configFilePath    string
}

// addSharedFlags registers the flags common to both subcommands.
func addSharedFlags(command *cobra.Command, options *commandOptions) {
	command.Flags().StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	command.Flags().BoolVar(&options.disableGitignore, noGitignoreFlagName, false, disableGitignoreFlagDescription)
	command.Flags().BoolVar(&options.disableBuiltin, noBuiltinFlagName, false, disableBuiltinFlagDescription)
	command.Flags().StringVar(&options.outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	command.Flags().StringVar(&options.configFilePath, configFlagName, "", configFlagDescription)
}

// createEstimateCommand returns the estimate subcommand.
func createEstimateCommand() *cobra.Command {
	var options commandOptions

	estimateCommand := &cobra.Command{
		Use:     estimateUse,
		Aliases: []string{estimateAlias},
		Short:   estimateShortDescription,
		Long:    estimateLongDescription,
		Example: estimateUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runEstimate(command, arguments, &options)
		},
	}
	addSharedFlags(estimateCommand, &options)
	return estimateCommand
}

// createCommitCommand returns the commit subcommand.
func createCommitCommand() *cobra.Command {
	var options commandOptions
	options.tokenModel = tokenizer.DefaultModel()

	commitCommand := &cobra.Command{
		Use:     commitUse,
		Aliases: []string{commitAlias},
		Short:   commitShortDescription,
		Long:    commitLongDescription,
		Example: commitUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runCommit(command, arguments, &options)
		},
	}
	addSharedFlags(commitCommand, &options)
	commitCommand.Flags().BoolVar(&options.tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	commitCommand.Flags().StringVar(&options.tokenModel, modelFlagName, options.tokenModel, modelFlagDescription)
	commitCommand.Flags().StringVar(&options.outputDirectory, outputFlagName, "", outputFlagDescription)
	commitCommand.Flags().BoolVar(&options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	return commitCommand
}

// resolveOptions overlays file configuration under explicit flag values.
func resolveOptions(command *cobra.Command, options *commandOptions, commandConfiguration config.CommandConfiguration) {
	if !command.Flags().Changed(formatFlagName) && commandConfiguration.Format != "" {
		options.outputFormat = commandConfiguration.Format
	}
	if len(commandConfiguration.Paths.Exclude) > 0 {
		options.exclusionPatterns = append(append([]string{}, commandConfiguration.Paths.Exclude...), options.exclusionPatterns...)
	}
	if !command.Flags().Changed(noGitignoreFlagName) && commandConfiguration.Paths.UseGitignore != nil {
		options.disableGitignore = !*commandConfiguration.Paths.UseGitignore
	}
	if !command.Flags().Changed(noBuiltinFlagName) && commandConfiguration.Paths.UseBuiltin != nil {
		options.disableBuiltin = !*commandConfiguration.Paths.UseBuiltin
	}
	if command.Flags().Lookup(tokensFlagName) != nil {
		if !command.Flags().Changed(tokensFlagName) && commandConfiguration.Tokens.Enabled != nil {
			options.tokensEnabled = *commandConfiguration.Tokens.Enabled
		}
		if !command.Flags().Changed(modelFlagName) && commandConfiguration.Tokens.Model != "" {
			options.tokenModel = commandConfiguration.Tokens.Model
		}
	}
	if command.Flags().Lookup(copyFlagName) != nil {
		if !command.Flags().Changed(copyFlagName) && commandConfiguration.Clipboard != nil {
			options.copyToClipboard = *commandConfiguration.Clipboard
		}
	}
}

// loadConfiguration loads the application configuration for the working directory.
func loadConfiguration(options *commandOptions) (config.ApplicationConfiguration, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	return config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configFilePath,
	})
}

// prepareInputs materializes the snapshot and assembles the rule set input.
func prepareInputs(arguments []string, options *commandOptions) (*snapshot.Snapshot, ignore.RuleSetInput, error) {
	targetPath := defaultPath
	if len(arguments) > 0 {
		targetPath = arguments[0]
	}

	loadedSnapshot, loadError := snapshot.Load(targetPath)
	if loadError != nil {
		return nil, ignore.RuleSetInput{}, loadError
	}

	ruleInput := ignore.RuleSetInput{
		UserPatterns:   utils.DeduplicatePatterns(options.exclusionPatterns),
		IncludeBuiltin: !options.disableBuiltin,
	}
	if !options.disableGitignore {
		ruleInput.GitignoreBlob = loadedSnapshot.GitignoreBlob
	}
	return loadedSnapshot, ruleInput, nil
}

func runEstimate(command *cobra.Command, arguments []string, options *commandOptions) error {
	applicationConfiguration, configurationError := loadConfiguration(options)
	if configurationError != nil {
		return configurationError
	}
	resolveOptions(command, options, applicationConfiguration.Estimate)
	if !isSupportedFormat(options.outputFormat) {
		return fmt.Errorf(invalidFormatMessage, options.outputFormat)
	}

	loadedSnapshot, ruleInput, prepareError := prepareInputs(arguments, options)
	if prepareError != nil {
		return prepareError
	}
	logSnapshotWarnings(loadedSnapshot)

	computeEngine := engine.New(engine.Options{
		Workers:         applicationConfiguration.Engine.Workers,
		OutputDirectory: resolveOutputDirectory(options, applicationConfiguration),
		CacheTTL:        applicationConfiguration.Engine.CacheTTL,
	})
	estimate, estimateError := computeEngine.Estimate(command.Context(), engineSnapshot(loadedSnapshot), ruleInput)
	if estimateError != nil {
		return estimateError
	}
	return output.WriteEstimate(command.OutOrStdout(), estimate, options.outputFormat)
}

func runCommit(command *cobra.Command, arguments []string, options *commandOptions) error {
	applicationConfiguration, configurationError := loadConfiguration(options)
	if configurationError != nil {
		return configurationError
	}
	resolveOptions(command, options, applicationConfiguration.Commit)
	if !isSupportedFormat(options.outputFormat) {
		return fmt.Errorf(invalidFormatMessage, options.outputFormat)
	}

	loadedSnapshot, ruleInput, prepareError := prepareInputs(arguments, options)
	if prepareError != nil {
		return prepareError
	}
	logSnapshotWarnings(loadedSnapshot)

	engineOptions := engine.Options{
		Workers:         applicationConfiguration.Engine.Workers,
		OutputDirectory: resolveOutputDirectory(options, applicationConfiguration),
		CacheTTL:        applicationConfiguration.Engine.CacheTTL,
	}
	if options.tokensEnabled {
		tokenCounter, resolvedModel, counterError := tokenizer.NewCounter(options.tokenModel)
		if counterError != nil {
			return counterError
		}
		engineOptions.TokenCounter = tokenCounter
		engineOptions.TokenModel = resolvedModel
	}
	computeEngine := engine.New(engineOptions)

	estimate, estimateError := computeEngine.Estimate(command.Context(), engineSnapshot(loadedSnapshot), ruleInput)
	if estimateError != nil {
		return estimateError
	}

	// The local runner is its own payment collaborator: the commit request
	// is paired with a generated session and confirmed immediately.
	paymentSessionID := localPaymentSessionPrefix + randomHex(localPaymentNonceBytes)
	if requestError := computeEngine.RequestCommit(estimate.Fingerprint, paymentSessionID); requestError != nil {
		return requestError
	}
	if confirmError := computeEngine.ConfirmPayment(paymentSessionID); confirmError != nil {
		return confirmError
	}

	cacheEntry, commitError := computeEngine.Commit(command.Context(), estimate.Fingerprint)
	if commitError != nil {
		return commitError
	}

	if options.copyToClipboard {
		if copyError := copyArtifact(cacheEntry.ArtifactLocation); copyError != nil {
			fmt.Fprintf(command.ErrOrStderr(), "Warning: failed to copy artifact to clipboard: %v\n", copyError)
		}
	}
	return output.WriteCommit(command.OutOrStdout(), cacheEntry, options.outputFormat)
}

// resolveOutputDirectory picks the artifact directory from flag, config, or default.
func resolveOutputDirectory(options *commandOptions, applicationConfiguration config.ApplicationConfiguration) string {
	if options.outputDirectory != "" {
		return options.outputDirectory
	}
	if applicationConfiguration.Engine.OutputDirectory != "" {
		return applicationConfiguration.Engine.OutputDirectory
	}
	return defaultOutputDirectory
}

// engineSnapshot converts a loaded snapshot into the engine's input form.
func engineSnapshot(loadedSnapshot *snapshot.Snapshot) engine.Snapshot {
	return engine.Snapshot{
		RepositoryName: loadedSnapshot.RepositoryName,
		Ref:            loadedSnapshot.RootPath,
		Entries:        loadedSnapshot.Entries,
	}
}

// logSnapshotWarnings reports snapshot capture warnings on stderr.
func logSnapshotWarnings(loadedSnapshot *snapshot.Snapshot) {
	for _, warningMessage := range loadedSnapshot.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warningMessage)
	}
}

// copyArtifact sends the artifact content to the system clipboard.
func copyArtifact(artifactLocation string) error {
	artifactBytes, readError := os.ReadFile(artifactLocation)
	if readError != nil {
		return readError
	}
	return clipboard.NewService().Copy(string(artifactBytes))
}

// randomHex returns a hex nonce of the requested byte length.
func randomHex(byteLength int) string {
	nonceBytes := make([]byte, byteLength)
	if _, readError := rand.Read(nonceBytes); readError != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(nonceBytes)
}
