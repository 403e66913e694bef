package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load 依次把 base.yaml 与 <env>.yaml 解码到 out，后者只覆盖它出现的键。
// 字符串中的 ${VAR} 由 secrets.env 替换，找不到的占位符原样保留。
func Load(env, configDir string, out any) error {
	if configDir == "" {
		configDir = "config"
	}

	secrets, err := readSecrets(filepath.Join(configDir, "secrets.env"))
	if err != nil {
		return err
	}

	if err := decodeLayer(filepath.Join(configDir, "base.yaml"), secrets, out); err != nil {
		return fmt.Errorf("failed to load base.yaml: %w", err)
	}
	if env == "" || env == "base" {
		return nil
	}

	err = decodeLayer(filepath.Join(configDir, env+".yaml"), secrets, out)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s.yaml: %w", env, err)
	}
	return nil
}

func readSecrets(path string) (map[string]string, error) {
	secrets, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets.env: %w", err)
	}
	return secrets, nil
}

// decodeLayer 在节点树上替换占位符，因此 secret 中的 YAML 特殊字符不会改变文件结构
func decodeLayer(path string, secrets map[string]string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 {
		return nil
	}
	expand(&doc, secrets)
	return doc.Decode(out)
}

func expand(n *yaml.Node, secrets map[string]string) {
	if n.Kind == yaml.ScalarNode {
		v := placeholder.ReplaceAllStringFunc(n.Value, func(m string) string {
			if s, ok := secrets[m[2:len(m)-1]]; ok {
				return s
			}
			return m
		})
		// 未加引号且未显式标注的值按替换后的内容重新推断类型
		if v != n.Value && n.Style&yaml.TaggedStyle == 0 {
			n.Tag = ""
		}
		n.Value = v
		return
	}
	for _, c := range n.Content {
		expand(c, secrets)
	}
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（从环境变量 CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
