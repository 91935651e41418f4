package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smilecare/gateway/internal/application"
	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	"github.com/smilecare/gateway/internal/infrastructure/auth"
	"github.com/smilecare/gateway/internal/infrastructure/config"
	"github.com/smilecare/gateway/internal/infrastructure/logger"
)

// identityFlags 命令行模拟的调用者身份, user-id 为 0 表示访客
type identityFlags struct {
	userID    int64
	role      string
	dentistID int64
	name      string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.userID, "user-id", 0, "用户ID (0 = 访客)")
	cmd.Flags().StringVar(&f.role, "role", "", "角色: admin | dentist | 留空")
	cmd.Flags().Int64Var(&f.dentistID, "dentist-id", 0, "牙医ID (role=dentist 时必填)")
	cmd.Flags().StringVar(&f.name, "name", "", "显示名称")
}

func (f *identityFlags) caller() valueobject.Caller {
	if f.userID <= 0 {
		return valueobject.Guest()
	}
	return valueobject.NewCaller(f.userID, valueobject.ParseRole(f.role), f.dentistID, f.name)
}

// ─── ask ───

func askCmd() *cobra.Command {
	var id identityFlags
	var conversationID int64

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "在终端执行一轮对话",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			// Quiet logger for CLI
			log, _, err := logger.NewLogger(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"})
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer log.Sync()

			app, err := application.NewAppCLI(cfg, log)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			defer app.Stop(context.Background())

			// Ctrl-C 取消本轮, 未回复的用户消息会被撤回
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result := app.Chat().Chat(ctx, id.caller(), strings.Join(args, " "), conversationID)
			printResult(cmd, result)
			if !result.Success {
				return fmt.Errorf("turn failed")
			}
			return nil
		},
	}
	id.register(cmd)
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "继续已有会话")
	return cmd
}

func printResult(cmd *cobra.Command, result *service.TurnResult) {
	out := cmd.OutOrStdout()
	if !result.Success {
		fmt.Fprintf(out, "✗ %s\n", result.Error)
		return
	}
	fmt.Fprintln(out, result.Response)
	var meta []string
	if result.FunctionCalled != "" {
		meta = append(meta, "tool="+result.FunctionCalled)
	}
	if result.ConversationID > 0 {
		meta = append(meta, fmt.Sprintf("conversation=%d", result.ConversationID))
	}
	if len(meta) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n(%s)\n", strings.Join(meta, ", "))
	}
}

// ─── tools ───

// toolInfo 工具目录导出格式
type toolInfo struct {
	Name        string   `yaml:"name"`
	Auth        string   `yaml:"auth"`
	Sensitive   bool     `yaml:"sensitive,omitempty"`
	Required    []string `yaml:"required,omitempty"`
	Allowed     *bool    `yaml:"allowed,omitempty"`
	Description string   `yaml:"description"`
}

func toolsCmd() *cobra.Command {
	var id identityFlags
	var format string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "列出工具目录及授权类别",
		Long:  "列出工具目录。指定 --user-id/--role 时额外显示该身份能否调用每个工具。",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := describeTools(tool.NewDentalCatalog(), id.caller(), cmd.Flags().Changed("user-id"))
			switch format {
			case "yaml":
				data, err := yaml.Marshal(infos)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "table":
				return printToolTable(cmd, infos)
			default:
				return fmt.Errorf("unknown format %q (table, yaml)", format)
			}
		},
	}
	id.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "输出格式: table | yaml")
	return cmd
}

func describeTools(catalog *tool.Catalog, caller valueobject.Caller, withAccess bool) []toolInfo {
	gate := service.NewAuthorizationGate(catalog)
	decls := catalog.Declarations()
	infos := make([]toolInfo, 0, len(decls))
	for _, d := range decls {
		info := toolInfo{
			Name:        d.Name,
			Auth:        string(d.Auth),
			Sensitive:   d.Sensitive,
			Description: d.Description,
		}
		for _, p := range d.Params {
			if p.Required {
				info.Required = append(info.Required, p.Name)
			}
		}
		if withAccess {
			_, err := gate.Authorize(d.Name, caller)
			allowed := err == nil
			info.Allowed = &allowed
		}
		infos = append(infos, info)
	}
	return infos
}

func printToolTable(cmd *cobra.Command, infos []toolInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAUTH\tSENSITIVE\tREQUIRED\tALLOWED")
	for _, info := range infos {
		allowed := "-"
		if info.Allowed != nil {
			allowed = fmt.Sprintf("%t", *info.Allowed)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", info.Name, info.Auth, info.Sensitive, strings.Join(info.Required, ","), allowed)
	}
	return w.Flush()
}

// ─── token ───

func tokenCmd() *cobra.Command {
	var id identityFlags
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发测试用 JWT (需要 auth.jwt_secret)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(id.caller(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	id.register(cmd)
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "有效期")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

// ─── config ───

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "打印生效配置 (密钥已隐藏)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			if cfg.Source != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# source: %s\n", cfg.Source)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
