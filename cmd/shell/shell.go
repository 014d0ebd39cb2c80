package shell

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Kain-Deterick/VK-Internship/cmd/util"
	"github.com/Kain-Deterick/VK-Internship/lib/lockmgr"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

const defaultScanCount = 10

// errQuit is returned by Exec for the quit command
var errQuit = errors.New("quit")

// command is one shell command
type command struct {
	usage string
	help  string
	args  func(n int) bool
	run   func(sh *Shell, args []string) error
}

func exactly(want int) func(int) bool { return func(n int) bool { return n == want } }
func between(lo, hi int) func(int) bool {
	return func(n int) bool { return n >= lo && n <= hi }
}

var commands map[string]command

// order of the help output
var commandNames = []string{
	"set", "setnx", "get", "del", "scan",
	"expire-one", "expire-upto", "sweep", "advance",
	"use", "lock", "unlock", "stats", "dump", "help", "quit",
}

func init() {
	commands = map[string]command{
		"set":         {"set <key> <value> [ttl]", "Store a value, ttl in seconds (0 = no expiration)", between(2, 3), (*Shell).set},
		"setnx":       {"setnx <key> <value> [ttl]", "Store a value only if the key has no live value", between(2, 3), (*Shell).setIfAbsent},
		"get":         {"get <key>", "Read a value", exactly(1), (*Shell).get},
		"del":         {"del <key>", "Remove a key", exactly(1), (*Shell).remove},
		"scan":        {"scan [start] [count]", "List live pairs with key >= start in key order", between(0, 2), (*Shell).scan},
		"expire-one":  {"expire-one", "Reclaim the earliest expired entry", exactly(0), (*Shell).expireOne},
		"expire-upto": {"expire-upto [seconds]", "Reclaim every entry expired up to now + seconds", between(0, 1), (*Shell).expireUpTo},
		"sweep":       {"sweep", "Run one tick of the namespace sweeper", exactly(0), (*Shell).sweep},
		"advance":     {"advance <seconds>", "Move the virtual clock forward", exactly(1), (*Shell).advance},
		"use":         {"use <namespace>", "Switch to another namespace", exactly(1), (*Shell).use},
		"lock":        {"lock <key> <ttl>", "Acquire a lock, prints the owner id", exactly(2), (*Shell).lock},
		"unlock":      {"unlock <key> <owner>", "Release a lock held by owner", exactly(2), (*Shell).unlock},
		"stats":       {"stats", "Print metrics of all namespaces", exactly(0), (*Shell).stats},
		"dump":        {"dump", "Print the database info of the namespace", exactly(0), (*Shell).dump},
		"help":        {"help", "Print this help", exactly(0), (*Shell).help},
		"quit":        {"quit", "Leave the shell", exactly(0), func(*Shell, []string) error { return errQuit }},
	}
}

// Shell executes line oriented commands against the stores of a runtime.
//
// A Shell is not safe for concurrent use.
type Shell struct {
	rt        *util.Runtime
	out       io.Writer
	namespace string
	locks     map[string]lockmgr.ILockManager
}

// New creates a shell writing to out, starting in the configured namespace
func New(rt *util.Runtime, out io.Writer) *Shell {
	return &Shell{
		rt:        rt,
		out:       out,
		namespace: rt.Config.Namespace,
		locks:     make(map[string]lockmgr.ILockManager),
	}
}

// Namespace returns the current namespace
func (sh *Shell) Namespace() string {
	return sh.namespace
}

// Run reads commands from in until EOF or quit. Command errors are printed
// and do not stop the shell. prompt is written before every line if not empty.
func (sh *Shell) Run(in io.Reader, prompt string) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt != "" {
			fmt.Fprintf(sh.out, "%s:%s", sh.namespace, prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		err := sh.Exec(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// Exec runs a single command line. Empty lines and lines starting with # are ignored.
func (sh *Shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "exit" {
		name = "quit"
	}

	c, ok := commands[name]
	if !ok {
		return errors.Errorf("unknown command %q, type help for a list of commands", fields[0])
	}
	if !c.args(len(args)) {
		return errors.Errorf("usage: %s", c.usage)
	}
	return c.run(sh, args)
}

func (sh *Shell) store() store.IStore {
	return sh.rt.Store(sh.namespace)
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func (sh *Shell) set(args []string) error {
	ttl, err := optionalTTL(args, 2)
	if err != nil {
		return err
	}
	if err := sh.store().Set(args[0], []byte(args[1]), ttl); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "OK")
	return nil
}

func (sh *Shell) setIfAbsent(args []string) error {
	ttl, err := optionalTTL(args, 2)
	if err != nil {
		return err
	}
	written, err := sh.store().SetIfAbsent(args[0], []byte(args[1]), ttl)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintln(sh.out, "OK")
	} else {
		fmt.Fprintln(sh.out, "exists")
	}
	return nil
}

func (sh *Shell) get(args []string) error {
	value, ok, err := sh.store().Get(args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(sh.out, "(nil)")
		return nil
	}
	fmt.Fprintf(sh.out, "%s\n", value)
	return nil
}

func (sh *Shell) remove(args []string) error {
	removed, err := sh.store().Remove(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "removed=%v\n", removed)
	return nil
}

func (sh *Shell) scan(args []string) error {
	start := ""
	if len(args) > 0 {
		start = args[0]
	}
	count := uint64(defaultScanCount)
	if len(args) > 1 {
		var err error
		if count, err = strconv.ParseUint(args[1], 10, 32); err != nil {
			return errors.Wrap(err, "count must be a number")
		}
	}

	pairs, err := sh.store().GetManySorted(start, uint32(count))
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		fmt.Fprintln(sh.out, "(empty)")
		return nil
	}
	for _, p := range pairs {
		fmt.Fprintf(sh.out, "%s: %s\n", p.Key, p.Value)
	}
	return nil
}

func (sh *Shell) expireOne(_ []string) error {
	pair, ok, err := sh.store().RemoveOneExpiredEntry()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(sh.out, "nothing expired")
		return nil
	}
	fmt.Fprintf(sh.out, "reclaimed %s: %s\n", pair.Key, pair.Value)
	return nil
}

func (sh *Shell) expireUpTo(args []string) error {
	asOf := sh.rt.Clock.Now()
	if len(args) == 1 {
		seconds, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrap(err, "seconds must be a number")
		}
		asOf = asOf.Add(time.Duration(seconds) * time.Second)
	}

	n, err := sh.store().RemoveExpiredEntriesUpTo(asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "reclaimed %d\n", n)
	return nil
}

func (sh *Shell) sweep(_ []string) error {
	n, err := sh.rt.Sweeper(sh.namespace).Sweep()
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "reclaimed %d\n", n)
	return nil
}

func (sh *Shell) advance(args []string) error {
	if sh.rt.Virtual == nil {
		return errors.New("advance requires --virtual-clock")
	}
	seconds, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return errors.Wrap(err, "seconds must be a number")
	}
	sh.rt.Virtual.Advance(time.Duration(seconds) * time.Second)
	fmt.Fprintf(sh.out, "now %s\n", sh.rt.Virtual.Now().Format(time.RFC3339))
	return nil
}

func (sh *Shell) use(args []string) error {
	sh.namespace = args[0]
	_, existed := sh.rt.Registry.GetOrCreate(sh.namespace)
	if existed {
		fmt.Fprintf(sh.out, "namespace %s\n", sh.namespace)
	} else {
		fmt.Fprintf(sh.out, "namespace %s (new)\n", sh.namespace)
	}
	return nil
}

func (sh *Shell) lockManager() lockmgr.ILockManager {
	lm, ok := sh.locks[sh.namespace]
	if !ok {
		lm = lockmgr.NewLockManager(sh.store())
		sh.locks[sh.namespace] = lm
	}
	return lm
}

func (sh *Shell) lock(args []string) error {
	ttl, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return errors.Wrap(err, "ttl must be a number")
	}
	ok, owner, err := sh.lockManager().AcquireLock(args[0], uint32(ttl))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(sh.out, "held")
		return nil
	}
	fmt.Fprintf(sh.out, "acquired %s\n", owner)
	return nil
}

func (sh *Shell) unlock(args []string) error {
	ok, err := sh.lockManager().ReleaseLock(args[0], []byte(args[1]))
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(sh.out, "released")
	} else {
		fmt.Fprintln(sh.out, "not owner")
	}
	return nil
}

func (sh *Shell) stats(_ []string) error {
	sh.rt.WritePrometheus(sh.out)

	for _, name := range sh.rt.Registry.Names() {
		st := sh.rt.Sweeper(name).Stats()
		fmt.Fprintf(sh.out, "# sweeper %s: ticks=%d reclaimed=%d mean=%s max=%s\n",
			name, st.Ticks, st.Reclaimed, st.MeanTick, st.MaxTick)
	}
	return nil
}

func (sh *Shell) dump(_ []string) error {
	info, err := sh.store().GetDBInfo()
	if err != nil {
		return err
	}
	spew.Fdump(sh.out, info)
	return nil
}

func (sh *Shell) help(_ []string) error {
	for _, name := range commandNames {
		c := commands[name]
		fmt.Fprintf(sh.out, "  %-28s%s\n", c.usage, c.help)
	}
	return nil
}

// optionalTTL parses args[i] as ttl in seconds, 0 if absent
func optionalTTL(args []string, i int) (uint32, error) {
	if len(args) <= i {
		return 0, nil
	}
	ttl, err := strconv.ParseUint(args[i], 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, "ttl must be a number")
	}
	return uint32(ttl), nil
}
