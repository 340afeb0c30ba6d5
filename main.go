package main

import "github.com/pricewatch/shopcrawl/cmd"

func main() {
	cmd.Execute()
}
