package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/panic80/cb-sub000/pkg/config"
	"github.com/panic80/cb-sub000/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cbchat",
	Short: "Terminal chat for the streaming RAG backend",
	Long: `cbchat is a terminal client for the chat backend. Answers stream in
as they are generated, with retrieval sources and follow-up suggestions
shown once each answer completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfgFile); err != nil {
			return err
		}
		if err := logger.Init(); err != nil {
			return err
		}
		defer logger.Close()

		appCfg := &AppConfig{
			Config:          config.Get(),
			DirectPrompt:    viper.GetString("prompt"),
			ContinueHistory: viper.GetBool("continue"),
		}
		return RunApplication(appCfg)
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .cbchat/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().StringP("prompt", "p", "", "send a single prompt and exit instead of entering the interactive loop")
	viper.BindPFlag("prompt", rootCmd.PersistentFlags().Lookup("prompt"))

	rootCmd.PersistentFlags().Bool("continue", false, "continue from previous chat history instead of starting fresh")
	viper.BindPFlag("continue", rootCmd.PersistentFlags().Lookup("continue"))

	rootCmd.PersistentFlags().String("server", "http://localhost:3000", "chat backend base URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("model", "gpt-4o-mini", "model id to request")
	viper.BindPFlag("chat.model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.PersistentFlags().Bool("no-rag", false, "disable retrieval augmentation for this session")
	viper.BindPFlag("no_rag", rootCmd.PersistentFlags().Lookup("no-rag"))

	config.Defaults()
}
