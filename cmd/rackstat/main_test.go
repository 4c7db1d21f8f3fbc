package main

import "testing"

func TestBuildRootCommands(t *testing.T) {
	root := buildRoot()
	if root.Use != "rackstat" {
		t.Fatalf("unexpected root use: %q", root.Use)
	}
	want := map[string]bool{
		"serve": false, "status": false, "toggle": false,
		"bulk": false, "notes": false, "export": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("missing --config flag")
	}
}

func TestRequiredFlags(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"toggle"})
	if err := root.Execute(); err == nil {
		t.Fatal("toggle without --id should fail")
	}
	root = buildRoot()
	root.SetArgs([]string{"bulk"})
	if err := root.Execute(); err == nil {
		t.Fatal("bulk without --status should fail")
	}
}
