package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"
)

const (
	launchdLabel = "com.crovest.command-center"
	systemdUnit  = "crovest.service"
)

// launchdPlistTemplate runs the command center as a persistent macOS user
// agent.
const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ProgramPath}}</string>
        <string>start</string>
        <string>--foreground</string>
    </array>

    <key>WorkingDirectory</key>
    <string>{{.WorkingDir}}</string>

    <key>KeepAlive</key>
    <true/>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogDir}}/crovest.out.log</string>

    <key>StandardErrorPath</key>
    <string>{{.LogDir}}/crovest.err.log</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>5</integer>
</dict>
</plist>
`

// systemdUnitTemplate is the Linux user unit equivalent.
const systemdUnitTemplate = `[Unit]
Description=Crovest Command Center
After=network-online.target

[Service]
ExecStart={{.ProgramPath}} start --foreground
WorkingDirectory={{.WorkingDir}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

type serviceData struct {
	Label       string
	ProgramPath string
	WorkingDir  string
	LogDir      string
}

// renderService fills the unit template for goos.
func renderService(goos string, data serviceData) ([]byte, error) {
	src := systemdUnitTemplate
	if goos == "darwin" {
		src = launchdPlistTemplate
	}
	tmpl, err := template.New("service").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing service template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering service template: %w", err)
	}
	return buf.Bytes(), nil
}

// servicePath returns where the unit file for goos lives under homeDir.
func servicePath(goos, homeDir string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(homeDir, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(homeDir, ".config", "systemd", "user", systemdUnit), nil
	default:
		return "", fmt.Errorf("service install is not supported on %s", goos)
	}
}

// InstallService writes a launchd agent (macOS) or systemd user unit (Linux)
// that runs "crovest start --foreground", then loads it.
func InstallService(dataDir string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	path, err := servicePath(runtime.GOOS, homeDir)
	if err != nil {
		return err
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable symlinks: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating service directory: %w", err)
	}

	data, err := renderService(runtime.GOOS, serviceData{
		Label:       launchdLabel,
		ProgramPath: execPath,
		WorkingDir:  dataDir,
		LogDir:      dataDir,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing service file %s: %w", path, err)
	}
	fmt.Printf("Service file written to %s\n", path)

	if runtime.GOOS == "darwin" {
		_ = exec.Command("launchctl", "unload", path).Run()
		return run("launchctl", "load", path)
	}
	if err := run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return run("systemctl", "--user", "enable", "--now", systemdUnit)
}

// UninstallService stops and removes the unit installed by InstallService.
func UninstallService() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	path, err := servicePath(runtime.GOOS, homeDir)
	if err != nil {
		return err
	}

	if runtime.GOOS == "darwin" {
		_ = exec.Command("launchctl", "unload", path).Run()
	} else {
		_ = exec.Command("systemctl", "--user", "disable", "--now", systemdUnit).Run()
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing service file: %w", err)
	}
	fmt.Printf("Service removed (%s)\n", path)
	return nil
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", name, args, err)
	}
	return nil
}
