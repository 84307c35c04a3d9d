// Command ffvm assembles a small demonstration program against the script
// engine and runs it, optionally on several tasks in parallel. It is the
// engine-side counterpart of a compiler front end: the program below is what
// such a front end would emit for
//
//	int accumulate(int n) { int ret = n; return ret; }
//
// with a constructor and destructor registered for int.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/VincentPT/ffscript/memory"
	"github.com/VincentPT/ffscript/version"
	"github.com/VincentPT/ffscript/vm"
)

func main() {
	app := &cli.Command{
		Name:  "ffvm",
		Usage: "Run the script engine demonstration program",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "tasks",
				Value: 1,
				Usage: "Number of tasks to run in parallel over the same program",
			},
			&cli.IntFlag{
				Name:  "param",
				Value: 7,
				Usage: "Argument passed to the script function",
			},
			&cli.BoolFlag{
				Name:  "disasm",
				Usage: "Print the program disassembly before running",
			},
			&cli.BoolFlag{
				Name:  "profile",
				Usage: "Print a per-task performance report after running",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "Show version",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Println(version.Version())
		return nil
	}

	program, fnID, counters, err := buildDemoProgram()
	if err != nil {
		return fmt.Errorf("assemble demo program: %w", err)
	}

	if cmd.Bool("disasm") {
		for _, line := range program.Disassemble() {
			fmt.Println(line)
		}
		fmt.Println()
	}

	taskCount := int(cmd.Int("tasks"))
	if taskCount < 1 {
		taskCount = 1
	}
	param := int32(cmd.Int("param"))

	tasks := make([]*vm.Task, taskCount)
	errs := make([]error, taskCount)
	var wg sync.WaitGroup
	for i := range tasks {
		tasks[i] = vm.NewTask(program, 4096)
		if cmd.Bool("profile") {
			tasks[i].EnableProfiling()
		}
		wg.Add(1)
		go func(t *vm.Task, slot *error) {
			defer wg.Done()
			params := vm.NewParamBuffer().PushInt32(param)
			*slot = t.RunFunction(fnID, params)
		}(tasks[i], &errs[i])
	}
	wg.Wait()

	for i, t := range tasks {
		if errs[i] != nil {
			fmt.Printf("task %d failed: %v\n", i, errs[i])
			continue
		}
		result := memory.ReadInt32(t.Result())
		fmt.Printf("task %d: accumulate(%d) = %d\n", i, param, result)
		if cmd.Bool("profile") {
			fmt.Print(t.PerformanceReport())
		}
	}
	fmt.Printf("constructors run: %d, destructors run: %d\n",
		counters.constructed.Load(), counters.destroyed.Load())
	return nil
}
