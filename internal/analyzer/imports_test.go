package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ansa-fs/internal/tree"
)

func TestExtractImports_JavaScript(t *testing.T) {
	src := `import React from 'react';
import { a,
  b } from "./local";
import './side-effect.css';
const fs = require('fs');
const lazy = import('./lazy');
export * from './reexport';
`
	got := ExtractImports("javascript", []byte(src))

	assert.Equal(t, []tree.Import{
		{Name: "react", Type: "import"},
		{Name: "./local", Type: "import"},
		{Name: "./side-effect.css", Type: "import"},
		{Name: "fs", Type: "require"},
		{Name: "./lazy", Type: "import"},
		{Name: "./reexport", Type: "export"},
	}, got)
}

func TestExtractImports_TypeOnly(t *testing.T) {
	got := ExtractImports("typescript", []byte("import type { Props } from './types';\n"))
	assert.Equal(t, []tree.Import{{Name: "./types", Type: "import"}}, got)
}

func TestExtractImports_Ruby(t *testing.T) {
	src := "require 'json'\nrequire_relative \"lib/helper\"\n"

	got := ExtractImports("ruby", []byte(src))

	assert.Equal(t, []tree.Import{
		{Name: "json", Type: "require"},
		{Name: "lib/helper", Type: "require_relative"},
	}, got)
}

func TestExtractImports_Go(t *testing.T) {
	src := `package main

import (
	"fmt"
	str "strings"
)

import "os"

func main() { fmt.Println(str.ToUpper(os.Args[0])) }
`
	got := ExtractImports("go", []byte(src))

	assert.Equal(t, []tree.Import{
		{Name: "fmt", Type: "import"},
		{Name: "strings", Type: "import"},
		{Name: "os", Type: "import"},
	}, got)
}

func TestExtractImports_Python(t *testing.T) {
	src := `import os, sys
import numpy as np
from collections import OrderedDict
`
	got := ExtractImports("python", []byte(src))

	assert.Equal(t, []tree.Import{
		{Name: "os", Type: "import"},
		{Name: "sys", Type: "import"},
		{Name: "numpy", Type: "import"},
		{Name: "collections", Type: "from"},
	}, got)
}

func TestExtractImports_Unsupported(t *testing.T) {
	got := ExtractImports("css", []byte("@import 'x.css';"))
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAnalyze_WithImports(t *testing.T) {
	opts := DefaultOptions()
	opts.ExtractImports = true

	analysis := Analyze([]byte("const x = require('lodash');\n"), "x.js", opts)
	require.NotNil(t, analysis)
	assert.Equal(t, []tree.Import{{Name: "lodash", Type: "require"}}, analysis.Imports)
}
