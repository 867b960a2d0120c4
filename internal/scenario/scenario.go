// Package scenario loads Lua scenario scripts: declarative session
// setups (player, NPCs, locations, factions, quests) plus scripted turn
// steps that drive the session service.
package scenario

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/faction"
	"github.com/louisbranch/emberwake.world/internal/state/quest"
)

const scenarioTypeName = "scenario"

// ErrInvalidScenario indicates a script that did not produce a usable
// scenario value.
var ErrInvalidScenario = apperrors.New(apperrors.CodeScenarioInvalid, "scenario script is invalid")

// NPC is one declared non-player character.
type NPC struct {
	ID         string
	Attributes map[string]any
}

// Location is one declared place in the world.
type Location struct {
	ID         string
	Attributes map[string]any
}

// Step is one scripted action to run against a session.
type Step struct {
	Kind string
	Args map[string]any
}

// Scenario is the parsed content of one scenario script.
type Scenario struct {
	Name      string
	Seed      int64
	Player    map[string]any
	NPCs      []NPC
	Locations []Location
	Factions  []faction.Faction
	Quests    []quest.Quest
	Steps     []Step
}

// LoadFile parses a scenario script from disk.
func LoadFile(path string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	sc, err := runScript(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// LoadString parses a scenario script held in memory.
func LoadString(script string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadString(state, script); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return runScript(state)
}

func newLuaState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerScenarioConstructor(state)
	return state
}

func runScript(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, apperrors.New(apperrors.CodeScenarioInvalid, "script must return a Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	sc, ok := ud.(*Scenario)
	if !ok || sc == nil {
		return nil, apperrors.New(apperrors.CodeScenarioInvalid, "script returned a foreign value")
	}
	return sc, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	sc := &Scenario{Name: name}
	state.PushUserData(sc)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "seed", Function: scenarioSeed},
	{Name: "player", Function: scenarioPlayer},
	{Name: "npc", Function: scenarioNPC},
	{Name: "location", Function: scenarioLocation},
	{Name: "faction", Function: scenarioFaction},
	{Name: "quest", Function: scenarioQuest},
	{Name: "start_turn", Function: scenarioStartTurn},
	{Name: "end_turn", Function: scenarioEndTurn},
	{Name: "action", Function: scenarioAction},
	{Name: "mutate", Function: scenarioMutate},
	{Name: "advance_time", Function: scenarioAdvanceTime},
	{Name: "quest_progress", Function: scenarioQuestProgress},
	{Name: "reputation", Function: scenarioReputation},
	{Name: "compel", Function: scenarioCompel},
	{Name: "spend_fate", Function: scenarioSpendFate},
	{Name: "award_fate", Function: scenarioAwardFate},
	{Name: "refresh_fate", Function: scenarioRefreshFate},
}

func scenarioSeed(state *lua.State) int {
	sc := checkScenario(state)
	sc.Seed = int64(lua.CheckNumber(state, 2))
	return 0
}

func scenarioPlayer(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	sc.Player = tableToMap(state, 2)
	return 0
}

func scenarioNPC(state *lua.State) int {
	sc := checkScenario(state)
	id := lua.CheckString(state, 2)
	sc.NPCs = append(sc.NPCs, NPC{ID: id, Attributes: optionalTable(state, 3)})
	return 0
}

func scenarioLocation(state *lua.State) int {
	sc := checkScenario(state)
	id := lua.CheckString(state, 2)
	sc.Locations = append(sc.Locations, Location{ID: id, Attributes: optionalTable(state, 3)})
	return 0
}

func scenarioFaction(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	var f faction.Faction
	if err := decodeTable(tableToMap(state, 2), &f); err != nil {
		lua.ArgumentError(state, 2, "faction table is invalid")
		return 0
	}
	sc.Factions = append(sc.Factions, f)
	return 0
}

func scenarioQuest(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	var q quest.Quest
	if err := decodeTable(tableToMap(state, 2), &q); err != nil {
		lua.ArgumentError(state, 2, "quest table is invalid")
		return 0
	}
	sc.Quests = append(sc.Quests, q)
	return 0
}

func scenarioStartTurn(state *lua.State) int {
	sc := checkScenario(state)
	actor := lua.CheckString(state, 2)
	scene := lua.CheckString(state, 3)
	appendStep(sc, "start_turn", map[string]any{"actor": actor, "scene": scene})
	return 0
}

func scenarioEndTurn(state *lua.State) int {
	sc := checkScenario(state)
	appendStep(sc, "end_turn", nil)
	return 0
}

func scenarioAction(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(sc, "action", tableToMap(state, 2))
	return 0
}

func scenarioMutate(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(sc, "mutate", tableToMap(state, 2))
	return 0
}

func scenarioAdvanceTime(state *lua.State) int {
	sc := checkScenario(state)
	appendStep(sc, "advance_time", nil)
	return 0
}

func scenarioQuestProgress(state *lua.State) int {
	sc := checkScenario(state)
	questID := lua.CheckString(state, 2)
	objectiveID := lua.CheckString(state, 3)
	count := lua.CheckInteger(state, 4)
	appendStep(sc, "quest_progress", map[string]any{
		"quest":     questID,
		"objective": objectiveID,
		"count":     count,
	})
	return 0
}

func scenarioReputation(state *lua.State) int {
	sc := checkScenario(state)
	factionID := lua.CheckString(state, 2)
	targetID := lua.CheckString(state, 3)
	shift := lua.CheckInteger(state, 4)
	cause := lua.OptString(state, 5, "")
	appendStep(sc, "reputation", map[string]any{
		"faction": factionID,
		"target":  targetID,
		"shift":   shift,
		"cause":   cause,
	})
	return 0
}

func scenarioCompel(state *lua.State) int {
	sc := checkScenario(state)
	actor := lua.CheckString(state, 2)
	aspect := lua.CheckString(state, 3)
	accepted := state.ToBoolean(4)
	appendStep(sc, "compel", map[string]any{
		"actor":    actor,
		"aspect":   aspect,
		"accepted": accepted,
	})
	return 0
}

func scenarioSpendFate(state *lua.State) int {
	sc := checkScenario(state)
	actor := lua.CheckString(state, 2)
	reason := lua.OptString(state, 3, "")
	appendStep(sc, "spend_fate", map[string]any{"actor": actor, "reason": reason})
	return 0
}

func scenarioAwardFate(state *lua.State) int {
	sc := checkScenario(state)
	actor := lua.CheckString(state, 2)
	reason := lua.OptString(state, 3, "")
	appendStep(sc, "award_fate", map[string]any{"actor": actor, "reason": reason})
	return 0
}

func scenarioRefreshFate(state *lua.State) int {
	sc := checkScenario(state)
	actor := lua.CheckString(state, 2)
	refresh := lua.CheckInteger(state, 3)
	appendStep(sc, "refresh_fate", map[string]any{"actor": actor, "refresh": refresh})
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if sc, ok := ud.(*Scenario); ok && sc != nil {
		return sc
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(sc *Scenario, kind string, args map[string]any) {
	if sc == nil {
		return
	}
	if args == nil {
		args = map[string]any{}
	}
	sc.Steps = append(sc.Steps, Step{Kind: kind, Args: args})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}

// decodeTable converts a lua-derived map into a typed struct through
// its JSON tags.
func decodeTable(raw map[string]any, out any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}
