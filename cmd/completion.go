package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_securelock() {
    local cur prev words cword
    _init_completion || return

    local commands="add remove list status lock unlock lock-all recover master doctor help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        add|lock|unlock|recover)
            _filedir -d
            ;;
        remove)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-force" -- "$cur"))
            else
                # Complete with tracked folders
                local folders
                folders=$(securelock list 2>/dev/null | sed -n 's/^  [A-Z]* *//p' | sed 's/ (.*//')
                COMPREPLY=($(compgen -W "$folders" -- "$cur"))
            fi
            ;;
        lock-all)
            COMPREPLY=($(compgen -W "-force" -- "$cur"))
            ;;
        master)
            COMPREPLY=($(compgen -W "setup verify status lock" -- "$cur"))
            ;;
        doctor)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-compact" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _securelock securelock
`

const zshCompletion = `#compdef securelock

_securelock() {
    local -a commands
    commands=(
        'add:Track a folder'
        'remove:Stop tracking a folder'
        'list:Show tracked folders and their states'
        'status:Show tracked folders and their states'
        'lock:Encrypt a tracked folder in place'
        'unlock:Decrypt a tracked folder in place'
        'lock-all:Lock every tracked folder'
        'recover:Restore a folder with the master password'
        'master:Master password management'
        'doctor:Inspect a folder and the registry'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'securelock commands' commands
            ;;
        args)
            case "${words[2]}" in
                add|lock|unlock|recover)
                    _arguments '*:folder:_directories'
                    ;;
                remove)
                    _arguments \
                        '-force[Remove even while locked]' \
                        '*:folder:_directories'
                    ;;
                lock-all)
                    _arguments '-force[Lock without confirmation]'
                    ;;
                master)
                    _values 'subcommand' setup verify status lock
                    ;;
                doctor)
                    _arguments \
                        '-compact[Compact the registry database]' \
                        '*:folder:_directories'
                    ;;
                help)
                    _describe -t commands 'securelock commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_securelock "$@"
`

const fishCompletion = `# securelock fish completions

set -l commands add remove list status lock unlock lock-all recover master doctor help completion

complete -c securelock -f

# Commands
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a add -d 'Track a folder'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a remove -d 'Stop tracking a folder'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a list -d 'Show tracked folders'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show tracked folders'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a lock -d 'Encrypt a folder in place'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a unlock -d 'Decrypt a folder in place'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a lock-all -d 'Lock every tracked folder'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a recover -d 'Restore with master password'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a master -d 'Master password management'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a doctor -d 'Inspect folder and registry'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c securelock -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# Folder arguments
complete -c securelock -n "__fish_seen_subcommand_from add lock unlock recover doctor" -a "(__fish_complete_directories)"

# remove flags
complete -c securelock -n "__fish_seen_subcommand_from remove" -o force -d 'Remove even while locked'
complete -c securelock -n "__fish_seen_subcommand_from remove" -a "(__fish_complete_directories)"

# lock-all flags
complete -c securelock -n "__fish_seen_subcommand_from lock-all" -o force -d 'Lock without confirmation'

# doctor flags
complete -c securelock -n "__fish_seen_subcommand_from doctor" -o compact -d 'Compact the registry database'

# master subcommands
complete -c securelock -n "__fish_seen_subcommand_from master" -a "setup verify status lock"

# help completions
complete -c securelock -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c securelock -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
