package platform

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

// ScriptLogName is the log file the installer script appends to.
const ScriptLogName = "update_log.txt"

// ScriptParams describes one run of the installer script.
type ScriptParams struct {
	GOOS            string
	StagedFile      string
	InstallDir      string
	ExecutableName  string
	ParentPID       int
	RegisterStartup bool
	LogFile         string
	// RunAsUser is the account the installed program is relaunched as when the
	// script itself runs as root. Ignored on Windows.
	RunAsUser    string
	WaitAttempts int
	WaitDelay    time.Duration
}

// Target is the installed executable path, joined with the separator of the
// script's OS rather than the host's.
func (p ScriptParams) Target() string {
	if p.GOOS == "windows" {
		return strings.TrimRight(p.InstallDir, `\/`) + `\` + p.ExecutableName
	}
	return path.Join(p.InstallDir, p.ExecutableName)
}

// ScriptFileName is the name the installer script is written under.
func ScriptFileName(goos string) string {
	if goos == "windows" {
		return "carelite_update.bat"
	}
	return "carelite_update.sh"
}

// InstallerScript renders the installer for p.GOOS: a cmd batch file on
// Windows, a POSIX sh script elsewhere.
func InstallerScript(p ScriptParams) ([]byte, error) {
	if p.StagedFile == "" || p.InstallDir == "" || p.ExecutableName == "" {
		return nil, fmt.Errorf("installer script: staged file, install dir and executable name are required")
	}
	if p.ParentPID <= 0 {
		return nil, fmt.Errorf("installer script: invalid parent pid %d", p.ParentPID)
	}
	if p.WaitAttempts <= 0 {
		p.WaitAttempts = 30
	}
	if p.WaitDelay < time.Second {
		p.WaitDelay = time.Second
	}
	if p.GOOS == "windows" {
		return batchScript(p)
	}
	return posixScript(p)
}

func delaySeconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}

func batchScript(p ScriptParams) ([]byte, error) {
	paths := []string{p.StagedFile, p.InstallDir, p.Target(), p.LogFile}
	for _, s := range paths {
		if strings.ContainsAny(s, "\"\r\n") {
			return nil, fmt.Errorf("installer script: unsupported character in path %q", s)
		}
	}
	q := func(s string) string { return `"` + strings.ReplaceAll(s, "%", "%%") + `"` }
	pid := strconv.Itoa(p.ParentPID)
	target := q(p.Target())
	staged := q(p.StagedFile)
	newFile := q(p.Target() + ".new")

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\r\n", args...)
	}
	line("@echo off")
	line("setlocal")
	line(`set "LOG=%s"`, strings.ReplaceAll(p.LogFile, "%", "%%"))
	line(`call :log "Installer started"`)
	line("net session >nul 2>&1")
	line("if errorlevel 1 goto noadmin")
	line("set /a tries=0")
	line(":wait")
	line(`tasklist /FI "PID eq %s" /NH 2>nul | find " %s " >nul`, pid, pid)
	line("if errorlevel 1 goto exited")
	line("set /a tries+=1")
	line("if %%tries%% geq %d goto stillrunning", p.WaitAttempts)
	line("timeout /t %s /nobreak >nul", delaySeconds(p.WaitDelay))
	line("goto wait")
	line(":exited")
	line(`call :log "Process %s has exited"`, pid)
	line("if not exist %s mkdir %s", q(p.InstallDir), q(p.InstallDir))
	line("if errorlevel 1 goto failed")
	line("copy /y %s %s >nul", staged, newFile)
	line("if errorlevel 1 goto failed")
	line("move /y %s %s >nul", newFile, target)
	line("if errorlevel 1 goto failed")
	line(`call :log "Installed %s"`, strings.ReplaceAll(p.Target(), "%", "%%"))
	if p.RegisterStartup {
		line("%s --register-startup", target)
		line(`if errorlevel 1 call :log "WARNING: startup registration failed"`)
	}
	line(`start "" %s`, target)
	line(`call :log "Relaunched installed executable"`)
	line("del /f /q %s >nul 2>&1", staged)
	line(`call :log "Installer finished"`)
	line(`(goto) 2>nul & del /f /q "%%~f0"`)
	line(":noadmin")
	line(`call :log "ERROR: administrative privileges are required"`)
	line("echo Administrative privileges are required to install the update.")
	line("exit /b 1")
	line(":stillrunning")
	line(`call :log "ERROR: process %s did not exit"`, pid)
	line("exit /b 1")
	line(":failed")
	line(`call :log "ERROR: could not copy the update into place"`)
	line("del /f /q %s >nul 2>&1", newFile)
	line("exit /b 1")
	line(":log")
	line(`echo [%%date%% %%time%%] %%~1>>"%%LOG%%"`)
	line("exit /b 0")
	return []byte(b.String()), nil
}

func posixScript(p ScriptParams) ([]byte, error) {
	quote := func(s string) (string, error) {
		return syntax.Quote(s, syntax.LangPOSIX)
	}
	values := map[string]string{
		"log":    p.LogFile,
		"dir":    p.InstallDir,
		"target": p.Target(),
		"new":    p.Target() + ".new",
		"staged": p.StagedFile,
		"user":   p.RunAsUser,
	}
	quoted := make(map[string]string, len(values))
	for k, v := range values {
		s, err := quote(v)
		if err != nil {
			return nil, fmt.Errorf("installer script: quote %s: %w", k, err)
		}
		quoted[k] = s
	}
	pid := strconv.Itoa(p.ParentPID)

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	line("#!/bin/sh")
	line("LOG=%s", quoted["log"])
	line("TARGET_USER=%s", quoted["user"])
	line("log() {")
	line(`printf '[%%s] %%s\n' "$(date '+%%Y-%%m-%%d %%H:%%M:%%S')" "$1" >>"$LOG"`)
	line("}")
	line("run_as_user() {")
	line(`if [ -n "$TARGET_USER" ] && [ "$TARGET_USER" != root ] && [ "$(id -u)" -eq 0 ]; then`)
	line("if command -v runuser >/dev/null 2>&1; then")
	line(`runuser -u "$TARGET_USER" -- "$@"`)
	line("else")
	line(`sudo -u "$TARGET_USER" "$@"`)
	line("fi")
	line("else")
	line(`"$@"`)
	line("fi")
	line("}")
	line(`log "Installer started"`)
	line(`if [ "$(id -u)" -ne 0 ]; then`)
	line(`log "ERROR: administrative privileges are required"`)
	line(`echo "Administrative privileges are required to install the update." >&2`)
	line("exit 1")
	line("fi")
	line("tries=0")
	line("while kill -0 %s 2>/dev/null; do", pid)
	line("tries=$((tries + 1))")
	line(`if [ "$tries" -ge %d ]; then`, p.WaitAttempts)
	line(`log "ERROR: process %s did not exit"`, pid)
	line("exit 1")
	line("fi")
	line("sleep %s", delaySeconds(p.WaitDelay))
	line("done")
	line(`log "Process %s has exited"`, pid)
	line(`mkdir -p %s || { log "ERROR: cannot create install directory"; exit 1; }`, quoted["dir"])
	line(`cp %s %s || { log "ERROR: could not copy the update"; rm -f %s; exit 1; }`, quoted["staged"], quoted["new"], quoted["new"])
	line("chmod 755 %s", quoted["new"])
	line(`mv -f %s %s || { log "ERROR: could not move the update into place"; rm -f %s; exit 1; }`, quoted["new"], quoted["target"], quoted["new"])
	line(`log "Installed "%s`, quoted["target"])
	if p.RegisterStartup {
		line(`run_as_user %s --register-startup || log "WARNING: startup registration failed"`, quoted["target"])
	}
	line("run_as_user %s </dev/null >/dev/null 2>&1 &", quoted["target"])
	line(`log "Relaunched installed executable"`)
	line("rm -f %s", quoted["staged"])
	line(`log "Installer finished"`)
	line(`rm -f "$0"`)

	return formatShell(b.String())
}

// formatShell parses src as POSIX sh and prints it back in canonical form, so
// a rendering mistake fails here rather than in the detached installer.
func formatShell(src string) ([]byte, error) {
	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(src), "installer.sh")
	if err != nil {
		return nil, fmt.Errorf("installer script: %w", err)
	}
	var out bytes.Buffer
	if err := syntax.NewPrinter(syntax.Indent(2)).Print(&out, file); err != nil {
		return nil, fmt.Errorf("installer script: print: %w", err)
	}
	return out.Bytes(), nil
}
