package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taseen/securelock/cmd"
	logger "github.com/taseen/securelock/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]

	// Global flags come before the command
	var log logger.Logger
	for len(args) > 0 {
		switch args[0] {
		case "-verbose", "--verbose":
			log.Verbose = true
			args = args[1:]
			continue
		case "-debug", "--debug":
			log.Debug = true
			args = args[1:]
			continue
		}
		break
	}

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		runAdd(log, args[1:])
	case "remove":
		runRemove(log, args[1:])
	case "list", "status":
		runList(log, args[1:])
	case "lock":
		runLock(ctx, log, args[1:])
	case "unlock":
		runUnlock(ctx, log, args[1:])
	case "lock-all":
		runLockAll(ctx, log, args[1:])
	case "recover":
		runRecover(ctx, log, args[1:])
	case "master":
		runMaster(log, args[1:])
	case "doctor":
		runDoctor(log, args[1:])
	case "completion":
		runCompletion(args[1:])
	case "help", "-h", "--help":
		if len(args) <= 1 {
			printUsage()
			return
		}
		printCommandHelp(args[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func runAdd(log logger.Logger, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock add <folder>")
		os.Exit(1)
	}

	cmd.Add(log, fs.Arg(0))
}

func runRemove(log logger.Logger, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	force := fs.Bool("force", false, "Remove the record even while the folder is locked")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock remove [-force] <folder>")
		os.Exit(1)
	}

	cmd.Remove(log, fs.Arg(0), *force)
}

func runList(log logger.Logger, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.List(log)
}

func runLock(ctx context.Context, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock lock <folder>")
		os.Exit(1)
	}

	cmd.Lock(ctx, log, fs.Arg(0))
}

func runUnlock(ctx context.Context, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock unlock <folder>")
		os.Exit(1)
	}

	cmd.Unlock(ctx, log, fs.Arg(0))
}

func runLockAll(ctx context.Context, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("lock-all", flag.ExitOnError)
	force := fs.Bool("force", false, "Lock without confirmation")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.LockAll(ctx, log, *force)
}

func runRecover(ctx context.Context, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock recover <folder>")
		os.Exit(1)
	}

	cmd.Recover(ctx, log, fs.Arg(0))
}

func runMaster(log logger.Logger, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock master <setup|verify|status|lock>")
		os.Exit(1)
	}

	switch args[0] {
	case "setup":
		cmd.MasterSetup(log)
	case "verify":
		cmd.MasterVerify(log)
	case "status":
		cmd.MasterStatus(log)
	case "lock":
		cmd.MasterLock(log)
	default:
		fmt.Fprintf(os.Stderr, "Unknown master subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: securelock master <setup|verify|status|lock>")
		os.Exit(1)
	}
}

func runDoctor(log logger.Logger, args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	compact := fs.Bool("compact", false, "Compact the registry database")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock doctor [-compact] [<folder>]")
		os.Exit(1)
	}

	cmd.Doctor(log, fs.Arg(0), *compact)
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: securelock completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("securelock - Password-protect folders in place")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  securelock [-verbose] [-debug] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  add          Track a folder")
	fmt.Println("  remove       Stop tracking a folder")
	fmt.Println("  list, status Show tracked folders and their states")
	fmt.Println("  lock         Encrypt a tracked folder in place")
	fmt.Println("  unlock       Decrypt a tracked folder in place")
	fmt.Println("  lock-all     Lock every tracked folder with one password")
	fmt.Println("  recover      Restore a folder with the master password")
	fmt.Println("  master       Master password: setup, verify, status, lock")
	fmt.Println("  doctor       Inspect a folder and the registry")
	fmt.Println("  completion   Generate shell completions")
	fmt.Println("  help         Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  securelock add ~/secrets           # Start tracking a folder")
	fmt.Println("  securelock lock ~/secrets          # Encrypt it in place")
	fmt.Println("  securelock unlock ~/secrets        # Bring the files back")
	fmt.Println("  securelock lock-all                # Lock everything at once")
	fmt.Println()
	fmt.Println("Use 'securelock help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "add":
		fmt.Println("securelock add <folder>")
		fmt.Println()
		fmt.Println("Starts tracking a folder so it can be locked and listed.")
		fmt.Println("The folder must exist and must not contain or sit inside")
		fmt.Println("another tracked folder.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  securelock add ~/secrets")
	case "remove":
		fmt.Println("securelock remove [-force] <folder>")
		fmt.Println()
		fmt.Println("Stops tracking a folder. Its contents are never touched.")
		fmt.Println("A locked folder is refused unless -force is given, because the")
		fmt.Println("record is what surfaces it in 'status' and 'lock-all'. With")
		fmt.Println("-force the folder stays encrypted on disk; re-add it later to")
		fmt.Println("unlock.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -force    Remove the record even while the folder is locked")
	case "list", "status":
		fmt.Println("securelock list")
		fmt.Println()
		fmt.Println("Shows every tracked folder with its live state:")
		fmt.Println("  LOCKED     encrypted, descriptor present")
		fmt.Println("  UNLOCKED   plaintext")
		fmt.Println("  PENDING    an interrupted lock can be resumed")
		fmt.Println("  CORRUPT    descriptor unreadable or artifacts missing")
		fmt.Println("  MISSING    the folder no longer exists")
		fmt.Println()
		fmt.Println("States are read from the folders themselves, not from cache.")
		fmt.Println("Does not require a password.")
	case "lock":
		fmt.Println("securelock lock <folder>")
		fmt.Println()
		fmt.Println("Encrypts every file in the folder in place. File names and the")
		fmt.Println("folder structure stay visible; contents become .locked files.")
		fmt.Println("Hidden files and folders are left alone.")
		fmt.Println()
		fmt.Println("The password is set per lock and confirmed. When a master")
		fmt.Println("password is configured, lock first asks for it to attach a")
		fmt.Println("recovery block (press Enter to skip); a recovered folder can")
		fmt.Println("then be restored without its own password.")
		fmt.Println()
		fmt.Println("An interrupted lock is resumed by running lock again with the")
		fmt.Println("same password.")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  SECURELOCK_PASSWORD           folder password (skips the prompt)")
		fmt.Println("  SECURELOCK_MASTER_PASSWORD    master password for the recovery block")
	case "unlock":
		fmt.Println("securelock unlock <folder>")
		fmt.Println()
		fmt.Println("Decrypts every file in the folder and removes the descriptor.")
		fmt.Println("If some artifacts are damaged, every healthy file is restored,")
		fmt.Println("the failures are listed, and the folder stays locked so the")
		fmt.Println("damaged files remain recoverable.")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  SECURELOCK_PASSWORD    folder password (skips the prompt)")
	case "lock-all":
		fmt.Println("securelock lock-all [-force]")
		fmt.Println()
		fmt.Println("Locks every tracked folder that is currently unlocked, all with")
		fmt.Println("the same password. Folders are processed concurrently; one")
		fmt.Println("failure never stops the rest. Already-locked folders are")
		fmt.Println("skipped. Recovery blocks are offered the same way 'lock' does.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -force    Lock without confirmation")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  SECURELOCK_PASSWORD           folder password (skips the prompt)")
		fmt.Println("  SECURELOCK_MASTER_PASSWORD    master password for recovery blocks")
	case "recover":
		fmt.Println("securelock recover <folder>")
		fmt.Println()
		fmt.Println("Restores a locked folder using the master password instead of")
		fmt.Println("the folder password. Works only when the folder was locked")
		fmt.Println("while the master session was unlocked (a recovery block was")
		fmt.Println("attached).")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  SECURELOCK_MASTER_PASSWORD    master password (skips the prompt)")
	case "master":
		fmt.Println("securelock master <setup|verify|status|lock>")
		fmt.Println()
		fmt.Println("Manages the master password.")
		fmt.Println()
		fmt.Println("  setup     Configure the master password (once; no reset)")
		fmt.Println("  verify    Check the master password and unlock the session")
		fmt.Println("  status    Show whether a master password is configured")
		fmt.Println("  lock      Clear the in-memory session")
		fmt.Println()
		fmt.Println("The master key lives only in memory while the process runs;")
		fmt.Println("nothing derived from it is ever written to disk except the")
		fmt.Println("wrapped per-folder recovery blocks.")
	case "doctor":
		fmt.Println("securelock doctor [-compact] [<folder>]")
		fmt.Println()
		fmt.Println("Inspects a tracked folder: its state, whether the descriptor's")
		fmt.Println("manifest matches the artifacts on disk, and whether its")
		fmt.Println("recovery block is usable with the current master password.")
		fmt.Println("Without a folder it reports on the registry database instead.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -compact    Compact the registry database to reclaim space")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "completion":
		fmt.Println("securelock completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(securelock completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(securelock completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  securelock completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
